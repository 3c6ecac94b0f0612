package bork

import "context"

// MentionSource fetches mentions of the bot account, newest first, with
// ids strictly greater than sinceID (and at most maxID when set).
type MentionSource interface {
	FetchMentions(ctx context.Context, sinceID string, maxID string, count int) ([]Mention, error)
}

// ReplySink posts a reply into the thread of inReplyToID and returns the
// new post id.
type ReplySink interface {
	PostReply(ctx context.Context, inReplyToID string, handle string, body string) (string, error)
}

// CompareIDs orders platform ids, which are unsigned decimal strings of
// varying length. Returns -1, 0 or 1.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
