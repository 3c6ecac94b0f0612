package twitter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
)

var _ bork.MentionSource = &Mock{}
var _ bork.ReplySink = &Mock{}

// Reply is one post recorded by Mock.
type Reply struct {
	ID          string
	InReplyToID string
	Handle      string
	Body        string
}

// Mock serves mentions from memory with the same paging rules as the API
// (newest first, since_id and until_id exclusive) and records replies.
type Mock struct {
	mu       sync.Mutex
	mentions []bork.Mention
	replies  []Reply
	fetches  int
	nextID   int

	// FetchErr is returned by FetchMentions when set.
	FetchErr error
	// FailFetchAt fails the Nth fetch (1-based), 0 never.
	FailFetchAt int
	// ReplyErr is returned by PostReply when set.
	ReplyErr error
}

func NewMock(mentions ...bork.Mention) *Mock {
	m := &Mock{nextID: 1}
	m.Add(mentions...)
	return m
}

func (m *Mock) Add(mentions ...bork.Mention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mentions = append(m.mentions, mentions...)
	sort.SliceStable(m.mentions, func(i, j int) bool {
		return bork.CompareIDs(m.mentions[i].ID, m.mentions[j].ID) > 0
	})
}

func (m *Mock) FetchMentions(ctx context.Context, sinceID string, maxID string, count int) ([]bork.Mention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.FailFetchAt == m.fetches {
		return nil, fmt.Errorf("mock fetch failure on call %d", m.fetches)
	}
	page := []bork.Mention{}
	for _, mention := range m.mentions {
		if sinceID != "" && bork.CompareIDs(mention.ID, sinceID) <= 0 {
			continue
		}
		if maxID != "" && bork.CompareIDs(mention.ID, maxID) >= 0 {
			continue
		}
		page = append(page, mention)
		if len(page) == count {
			break
		}
	}
	return page, nil
}

func (m *Mock) PostReply(ctx context.Context, inReplyToID string, handle string, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplyErr != nil {
		return "", m.ReplyErr
	}
	id := fmt.Sprintf("reply-%d", m.nextID)
	m.nextID++
	m.replies = append(m.replies, Reply{ID: id, InReplyToID: inReplyToID, Handle: handle, Body: body})
	return id, nil
}

func (m *Mock) Replies() []Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Reply{}, m.replies...)
}

func (m *Mock) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}
