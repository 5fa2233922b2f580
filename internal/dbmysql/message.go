package dbmysql

import (
	"time"
)

// Message is one direct message. ParticipantA/ParticipantB hold the pair
// positionally (sender first); readers must not rely on slot order.
type Message struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID    string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	ParticipantA string    `gorm:"index:idx_messages_pair,priority:1;size:64;not null" json:"-"`
	ParticipantB string    `gorm:"index:idx_messages_pair,priority:2;size:64;not null" json:"-"`
	SenderID     string    `gorm:"index;size:64;not null" json:"sender"`
	Kind         string    `gorm:"size:10;not null" json:"-"`
	Text         string    `gorm:"type:text" json:"-"`
	ImagePath    string    `gorm:"size:255;index" json:"-"`
	CreatedAt    time.Time `gorm:"index;precision:6;not null" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) Participants() [2]string {
	return [2]string{m.ParticipantA, m.ParticipantB}
}

func (m *Message) HasParticipant(userID string) bool {
	return m.ParticipantA == userID || m.ParticipantB == userID
}

// Peer returns the participant that is not viewerID. A message a user sent
// to themselves has that user as its peer.
func (m *Message) Peer(viewerID string) (string, bool) {
	switch viewerID {
	case m.ParticipantA:
		return m.ParticipantB, true
	case m.ParticipantB:
		return m.ParticipantA, true
	default:
		return "", false
	}
}

// After reports whether m sorts after other in creation order. The
// auto-increment id breaks ties between equal timestamps.
func (m *Message) After(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.ID > other.ID
}
