package checker

import (
	"context"
	"net/url"
	"strings"
)

// SearchPresence reports whether a from: query for the screen name surfaces
// any of the user's tweets. Absence is the search-ban signal.
func (c *Client) SearchPresence(ctx context.Context, screenName string) (bool, error) {
	params := url.Values{}
	params.Set("q", "from:"+screenName)

	var payload timelineResponse
	if err := c.getJSON(ctx, EndpointSearchTimeline, params, &payload); err != nil {
		return false, err
	}

	return authorMatches(payload.Data.Timeline.Instructions, screenName), nil
}

type typeaheadResponse struct {
	Users []struct {
		ScreenName string `json:"screen_name"`
	} `json:"users"`
}

// SearchSuggestion reports whether the typeahead suggests the account for
// its own @-prefixed handle. Absence is the suggestion-ban signal.
func (c *Client) SearchSuggestion(ctx context.Context, screenName string) (bool, error) {
	params := url.Values{}
	params.Set("q", "@"+screenName)

	var payload typeaheadResponse
	if err := c.getJSON(ctx, EndpointSearchTypeahead, params, &payload); err != nil {
		return false, err
	}

	for _, user := range payload.Users {
		if strings.EqualFold(user.ScreenName, screenName) {
			return true, nil
		}
	}
	return false, nil
}
