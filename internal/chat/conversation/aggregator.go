package conversation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gochat/internal/chat/content"
	"gochat/internal/dbmysql"
)

// Summary is one row of a user's conversation list. It is derived from the
// message store on every request and never stored.
type Summary struct {
	PeerID             string    `json:"peerId"`
	LastMessagePreview string    `json:"lastMessagePreview"`
	LastMessageTime    time.Time `json:"lastMessageTime"`
	MessageCount       int       `json:"messageCount"`
}

// MessageLister is the slice of the message store the aggregator reads.
type MessageLister interface {
	ListByParticipant(ctx context.Context, userID string) ([]*dbmysql.Message, error)
}

type Aggregator struct {
	store MessageLister
}

func NewAggregator(store MessageLister) *Aggregator {
	return &Aggregator{store: store}
}

// Conversations loads every message the viewer took part in and reduces it
// to one summary per peer.
func (a *Aggregator) Conversations(ctx context.Context, viewerID string) ([]Summary, error) {
	msgs, err := a.store.ListByParticipant(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load conversations for %s: %w", viewerID, err)
	}
	return Summarize(viewerID, msgs), nil
}

type partition struct {
	latest *dbmysql.Message
	count  int
}

// Summarize groups msgs by the participant that is not viewerID and keeps
// the latest message of each group as its representative. Messages the
// viewer is not part of are ignored. Ordering between equal timestamps
// falls back to the store's insertion sequence.
//
// Rows come back most recent first, but callers should not rely on that.
func Summarize(viewerID string, msgs []*dbmysql.Message) []Summary {
	groups := make(map[string]*partition)
	for _, m := range msgs {
		if m == nil {
			continue
		}
		peer, ok := m.Peer(viewerID)
		if !ok {
			continue
		}

		p, exists := groups[peer]
		if !exists {
			groups[peer] = &partition{latest: m, count: 1}
			continue
		}
		p.count++
		if m.After(p.latest) {
			p.latest = m
		}
	}

	summaries := make([]Summary, 0, len(groups))
	for peer, p := range groups {
		c := content.FromStored(p.latest.Kind, p.latest.Text, p.latest.ImagePath)
		summaries = append(summaries, Summary{
			PeerID:             peer,
			LastMessagePreview: content.Preview(c),
			LastMessageTime:    p.latest.CreatedAt,
			MessageCount:       p.count,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastMessageTime.Equal(summaries[j].LastMessageTime) {
			return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
		}
		return summaries[i].PeerID < summaries[j].PeerID
	})

	return summaries
}
