package checker

import (
	"context"
	"net/url"
	"strings"

	"github.com/shadowlens/shadowlens/internal/core"
)

// The timeline surface returns a list of instructions; each instruction and
// each entry is a tagged variant resolved by an explicit discriminant rather
// than by probing fields.
const (
	instructionAddEntries = "TimelineAddEntries"
	instructionPinEntry   = "TimelinePinEntry"

	entryTypeItem   = "TimelineTimelineItem"
	entryTypeModule = "TimelineTimelineModule"
	entryTypeCursor = "TimelineTimelineCursor"

	cursorBottom          = "Bottom"
	cursorShowMoreThreads = "ShowMoreThreads"
)

type timelineResponse struct {
	Data struct {
		Timeline struct {
			Instructions []instruction `json:"instructions"`
		} `json:"timeline"`
	} `json:"data"`
}

type instruction struct {
	Type    string  `json:"type"`
	Entries []entry `json:"entries"`
	Entry   *entry  `json:"entry"`
}

type entry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType   string       `json:"entryType"`
		ItemContent *itemContent `json:"itemContent"`
		Items       []struct {
			Item struct {
				ItemContent *itemContent `json:"itemContent"`
			} `json:"item"`
		} `json:"items"`
		Value      string `json:"value"`
		CursorType string `json:"cursorType"`
	} `json:"content"`
}

type itemContent struct {
	TweetResults struct {
		Result *tweetResult `json:"result"`
	} `json:"tweet_results"`
}

type tweetResult struct {
	RestID string `json:"rest_id"`
	Core   struct {
		UserResults struct {
			Result struct {
				Legacy struct {
					ScreenName string `json:"screen_name"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy struct {
		InReplyToStatusID string `json:"in_reply_to_status_id_str"`
	} `json:"legacy"`
}

// Timeline fetches one page of a user's tweets.
func (c *Client) Timeline(ctx context.Context, userID, cursor string) (core.TimelinePage, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var payload timelineResponse
	if err := c.getJSON(ctx, EndpointUserTweets, params, &payload); err != nil {
		return core.TimelinePage{}, err
	}

	instructions := payload.Data.Timeline.Instructions
	return core.TimelinePage{
		Tweets:     c.collectTweets(instructions),
		NextCursor: findCursor(instructions, cursorBottom),
	}, nil
}

// ReplyVisibility looks for a reply inside its parent conversation. A reply
// absent from the main thread is fetched once more behind the show-more
// cursor: present there means deboosted, absent everywhere means ghost
// banned.
func (c *Client) ReplyVisibility(ctx context.Context, conversationID, tweetID string) (core.ReplyVisibility, error) {
	params := url.Values{}
	params.Set("focal_tweet_id", conversationID)

	var payload timelineResponse
	if err := c.getJSON(ctx, EndpointTweetDetail, params, &payload); err != nil {
		return core.ReplyVisibility{}, err
	}

	instructions := payload.Data.Timeline.Instructions
	if containsTweet(c.collectTweets(instructions), tweetID) {
		return core.ReplyVisibility{Found: true}, nil
	}

	showMore := findCursor(instructions, cursorShowMoreThreads)
	if showMore == "" {
		return core.ReplyVisibility{}, nil
	}

	params.Set("cursor", showMore)
	var hidden timelineResponse
	if err := c.getJSON(ctx, EndpointTweetDetail, params, &hidden); err != nil {
		return core.ReplyVisibility{}, err
	}
	if containsTweet(c.collectTweets(hidden.Data.Timeline.Instructions), tweetID) {
		return core.ReplyVisibility{Found: true, Deboosted: true}, nil
	}
	return core.ReplyVisibility{}, nil
}

// collectTweets walks all instruction variants and flattens their tweets in
// order: pinned entries first as delivered, items directly, modules through
// their item list.
func (c *Client) collectTweets(instructions []instruction) []core.TweetRef {
	var tweets []core.TweetRef
	appendEntry := func(e entry) {
		switch e.Content.EntryType {
		case entryTypeItem:
			if ref, ok := c.tweetRef(e.Content.ItemContent); ok {
				tweets = append(tweets, ref)
			}
		case entryTypeModule:
			for _, item := range e.Content.Items {
				if ref, ok := c.tweetRef(item.Item.ItemContent); ok {
					tweets = append(tweets, ref)
				}
			}
		}
	}

	for _, inst := range instructions {
		switch inst.Type {
		case instructionAddEntries:
			for _, e := range inst.Entries {
				appendEntry(e)
			}
		case instructionPinEntry:
			if inst.Entry != nil {
				appendEntry(*inst.Entry)
			}
		}
	}
	return tweets
}

func (c *Client) tweetRef(content *itemContent) (core.TweetRef, bool) {
	if content == nil || content.TweetResults.Result == nil {
		return core.TweetRef{}, false
	}
	result := content.TweetResults.Result
	if result.RestID == "" {
		return core.TweetRef{}, false
	}

	screenName := result.Core.UserResults.Result.Legacy.ScreenName
	path := "/i/status/" + result.RestID
	if screenName != "" {
		path = "/" + screenName + "/status/" + result.RestID
	}

	return core.TweetRef{
		ID:          result.RestID,
		URL:         c.statusBaseURL() + path,
		InReplyToID: result.Legacy.InReplyToStatusID,
	}, true
}

func findCursor(instructions []instruction, cursorType string) string {
	for _, inst := range instructions {
		if inst.Type != instructionAddEntries {
			continue
		}
		for _, e := range inst.Entries {
			if e.Content.EntryType == entryTypeCursor && e.Content.CursorType == cursorType {
				return e.Content.Value
			}
		}
	}
	return ""
}

func containsTweet(tweets []core.TweetRef, tweetID string) bool {
	for _, tweet := range tweets {
		if tweet.ID == tweetID {
			return true
		}
	}
	return false
}

// authorMatches reports whether any collected tweet was authored by the
// given screen name. Used by the search presence check.
func authorMatches(instructions []instruction, screenName string) bool {
	match := func(content *itemContent) bool {
		if content == nil || content.TweetResults.Result == nil {
			return false
		}
		author := content.TweetResults.Result.Core.UserResults.Result.Legacy.ScreenName
		return strings.EqualFold(author, screenName)
	}

	for _, inst := range instructions {
		entries := inst.Entries
		if inst.Type == instructionPinEntry && inst.Entry != nil {
			entries = []entry{*inst.Entry}
		}
		for _, e := range entries {
			switch e.Content.EntryType {
			case entryTypeItem:
				if match(e.Content.ItemContent) {
					return true
				}
			case entryTypeModule:
				for _, item := range e.Content.Items {
					if match(item.Item.ItemContent) {
						return true
					}
				}
			}
		}
	}
	return false
}
