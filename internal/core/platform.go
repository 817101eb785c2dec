package core

// ProfileLookup is the tagged outcome of resolving a screen name upstream.
// Exactly one of the three flags is set when Profile is nil.
type ProfileLookup struct {
	Profile   *Profile
	NotFound  bool
	Suspended bool
	Protected bool
}

// TweetRef is one timeline entry collected for availability probing.
type TweetRef struct {
	ID          string
	URL         string
	InReplyToID string
}

// TimelinePage is one cursor-delimited slice of a user timeline.
type TimelinePage struct {
	Tweets     []TweetRef
	NextCursor string
}

// ReplyVisibility reports how a reply surfaces inside its parent conversation.
type ReplyVisibility struct {
	// Found is false when the reply is absent from the conversation entirely.
	Found bool
	// Deboosted is true when the reply only appears behind the low-quality
	// "show more" cut.
	Deboosted bool
}
