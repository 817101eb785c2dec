package checker

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const timelinePage = `{
	"data": {"timeline": {"instructions": [
		{"type": "TimelinePinEntry", "entry": {
			"entryId": "tweet-1",
			"content": {"entryType": "TimelineTimelineItem", "itemContent": {
				"tweet_results": {"result": {
					"rest_id": "1",
					"core": {"user_results": {"result": {"legacy": {"screen_name": "jack"}}}},
					"legacy": {}
				}}
			}}
		}},
		{"type": "TimelineAddEntries", "entries": [
			{"entryId": "tweet-2", "content": {"entryType": "TimelineTimelineItem", "itemContent": {
				"tweet_results": {"result": {
					"rest_id": "2",
					"core": {"user_results": {"result": {"legacy": {"screen_name": "jack"}}}},
					"legacy": {"in_reply_to_status_id_str": "99"}
				}}
			}}},
			{"entryId": "module-1", "content": {"entryType": "TimelineTimelineModule", "items": [
				{"item": {"itemContent": {"tweet_results": {"result": {
					"rest_id": "3",
					"core": {"user_results": {"result": {"legacy": {"screen_name": "jack"}}}},
					"legacy": {}
				}}}}},
				{"item": {"itemContent": {}}}
			]}},
			{"entryId": "cursor-bottom", "content": {"entryType": "TimelineTimelineCursor", "value": "c2", "cursorType": "Bottom"}}
		]}
	]}}
}`

func TestTimelineDecodesAllEntryVariants(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(timelinePage))

	page, err := client.Timeline(context.Background(), "42", "")
	require.NoError(t, err)

	require.Len(t, page.Tweets, 3)
	require.Equal(t, "1", page.Tweets[0].ID)
	require.Equal(t, "2", page.Tweets[1].ID)
	require.Equal(t, "99", page.Tweets[1].InReplyToID)
	require.Equal(t, "3", page.Tweets[2].ID)
	require.Contains(t, page.Tweets[0].URL, "/jack/status/1")
	require.Equal(t, "c2", page.NextCursor)
}

func TestTimelinePassesCursor(t *testing.T) {
	var gotCursor string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		w.Write([]byte(`{"data":{"timeline":{"instructions":[]}}}`)) // nolint:errcheck
	}))

	page, err := client.Timeline(context.Background(), "42", "c7")
	require.NoError(t, err)
	require.Empty(t, page.Tweets)
	require.Empty(t, page.NextCursor)
	require.Equal(t, "c7", gotCursor)
}

func TestSearchPresenceMatchesAuthor(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(timelinePage))

	present, err := client.SearchPresence(context.Background(), "JACK")
	require.NoError(t, err)
	require.True(t, present)

	present, err = client.SearchPresence(context.Background(), "other")
	require.NoError(t, err)
	require.False(t, present)
}

func TestSearchSuggestion(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(`{"users": [{"screen_name": "Jack"}, {"screen_name": "jill"}]}`))

	suggested, err := client.SearchSuggestion(context.Background(), "jack")
	require.NoError(t, err)
	require.True(t, suggested)

	suggested, err = client.SearchSuggestion(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, suggested)
}

func conversationPage(tweetID, cursorType, cursorValue string) string {
	entries := ""
	if tweetID != "" {
		entries = fmt.Sprintf(`{"entryId": "tweet-%s", "content": {"entryType": "TimelineTimelineItem", "itemContent": {
			"tweet_results": {"result": {"rest_id": "%s", "legacy": {}}}
		}}},`, tweetID, tweetID)
	}
	cursor := ""
	if cursorType != "" {
		cursor = fmt.Sprintf(`,{"entryId": "cursor-x", "content": {"entryType": "TimelineTimelineCursor", "value": "%s", "cursorType": "%s"}}`, cursorValue, cursorType)
	}
	return fmt.Sprintf(`{"data": {"timeline": {"instructions": [
		{"type": "TimelineAddEntries", "entries": [%s
			{"entryId": "tweet-99", "content": {"entryType": "TimelineTimelineItem", "itemContent": {
				"tweet_results": {"result": {"rest_id": "99", "legacy": {}}}
			}}}%s
		]}
	]}}}`, entries, cursor)
}

func TestReplyVisibilityFoundInThread(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(conversationPage("2", "", "")))

	visibility, err := client.ReplyVisibility(context.Background(), "99", "2")
	require.NoError(t, err)
	require.True(t, visibility.Found)
	require.False(t, visibility.Deboosted)
}

func TestReplyVisibilityBehindShowMoreIsDeboosted(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(conversationPage("", "ShowMoreThreads", "more-1"))) // nolint:errcheck
			return
		}
		w.Write([]byte(conversationPage("2", "", ""))) // nolint:errcheck
	}))

	visibility, err := client.ReplyVisibility(context.Background(), "99", "2")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.True(t, visibility.Found)
	require.True(t, visibility.Deboosted)
}

func TestReplyVisibilityAbsentEverywhere(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(conversationPage("", "ShowMoreThreads", "more-1"))) // nolint:errcheck
			return
		}
		w.Write([]byte(conversationPage("", "", ""))) // nolint:errcheck
	}))

	visibility, err := client.ReplyVisibility(context.Background(), "99", "2")
	require.NoError(t, err)
	require.False(t, visibility.Found)
	require.False(t, visibility.Deboosted)
}

func TestReplyVisibilityNoShowMoreCursor(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(conversationPage("", "Bottom", "b1"))) // nolint:errcheck
	}))

	visibility, err := client.ReplyVisibility(context.Background(), "99", "2")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.False(t, visibility.Found)
}
