package checker

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/shadowlens/shadowlens/internal/core"
)

// errMissingProfileResult marks a well-formed lookup payload that carries no
// result. The caller retries it like any other operational failure; only
// after retries are exhausted does the orchestrator conclude not-found.
var errMissingProfileResult = errors.New("user lookup returned no result")

// profileResponse is the subset of the user lookup payload we consume. The
// result is a tagged variant discriminated by __typename.
type profileResponse struct {
	Data struct {
		User struct {
			Result *struct {
				Typename string `json:"__typename"`
				RestID   string `json:"rest_id"`
				Legacy   struct {
					ScreenName        string `json:"screen_name"`
					Name              string `json:"name"`
					FollowersCount    int    `json:"followers_count"`
					StatusesCount     int    `json:"statuses_count"`
					Protected         bool   `json:"protected"`
					PossiblySensitive bool   `json:"possibly_sensitive"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

// Profile resolves a screen name to its tagged lookup outcome.
func (c *Client) Profile(ctx context.Context, screenName string) (core.ProfileLookup, error) {
	params := url.Values{}
	params.Set("screen_name", screenName)

	var payload profileResponse
	err := c.getJSONValidated(ctx, EndpointUserByScreenName, params, &payload, func() error {
		if payload.Data.User.Result == nil {
			return errMissingProfileResult
		}
		return nil
	})
	if err != nil {
		return core.ProfileLookup{}, err
	}

	result := payload.Data.User.Result

	// Anything that is not a plain User (UserUnavailable and friends) is
	// treated as suspended.
	if !strings.EqualFold(result.Typename, "User") {
		return core.ProfileLookup{Suspended: true}, nil
	}
	if result.Legacy.Protected {
		return core.ProfileLookup{Protected: true}, nil
	}

	return core.ProfileLookup{
		Profile: &core.Profile{
			UserID:         result.RestID,
			ScreenName:     result.Legacy.ScreenName,
			Name:           result.Legacy.Name,
			FollowersCount: result.Legacy.FollowersCount,
			StatusesCount:  result.Legacy.StatusesCount,
			Sensitive:      result.Legacy.PossiblySensitive,
		},
	}, nil
}
