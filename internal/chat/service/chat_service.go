package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gochat/internal/chat/content"
	"gochat/internal/chat/conversation"
	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
)

// ChatService defines the interface exposed to the handler layer
type ChatService interface {
	SendMessage(ctx context.Context, req SendRequest) (*Record, error)
	GetHistory(ctx context.Context, viewerID, peerID string) ([]HistoryItem, error)
	DeleteMessage(ctx context.Context, messageID, requesterID string) error
	GetConversations(ctx context.Context, viewerID string) ([]conversation.Summary, error)
}

// Notifier is told about every committed message. It reports nothing back.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, payload interface{})
}

// MediaRemover deletes a stored attachment by its server-relative path.
type MediaRemover interface {
	RemoveMedia(ctx context.Context, path string) error
}

type SendRequest struct {
	SenderID    string
	RecipientID string
	Text        string
	ImagePath   string
}

// Record is the canonical form of a stored message.
type Record struct {
	ID           string          `json:"id"`
	Content      content.Content `json:"content"`
	Sender       string          `json:"sender"`
	Participants [2]string       `json:"participants"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// HistoryItem is a message as seen by one side of the conversation.
type HistoryItem struct {
	ID        string          `json:"id"`
	Content   content.Content `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	FromSelf  bool            `json:"fromSelf"`
}

type chatService struct {
	repo       repository.MessageRepository
	aggregator *conversation.Aggregator
	notifier   Notifier
	media      MediaRemover
}

// Constructor used in DI/wire
func NewChatService(
	r repository.MessageRepository,
	agg *conversation.Aggregator,
	n Notifier,
	m MediaRemover,
) ChatService {
	return &chatService{repo: r, aggregator: agg, notifier: n, media: m}
}

func (s *chatService) SendMessage(ctx context.Context, req SendRequest) (*Record, error) {
	if err := common.ValidateUserID("sender id", req.SenderID); err != nil {
		return nil, err
	}
	if err := common.ValidateUserID("recipient id", req.RecipientID); err != nil {
		return nil, err
	}

	c, err := content.Classify(req.Text, req.ImagePath)
	if err != nil {
		return nil, err
	}

	msg := &dbmysql.Message{
		ParticipantA: req.SenderID,
		ParticipantB: req.RecipientID,
		SenderID:     req.SenderID,
		Kind:         c.Kind.String(),
		Text:         c.Text,
		ImagePath:    c.Image,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	record := toRecord(msg)
	if s.notifier != nil {
		s.notifier.Notify(ctx, req.RecipientID, record)
	}

	return record, nil
}

// GetHistory returns the pair's messages oldest first.
func (s *chatService) GetHistory(ctx context.Context, viewerID, peerID string) ([]HistoryItem, error) {
	if err := common.ValidateUserID("viewer id", viewerID); err != nil {
		return nil, err
	}
	if err := common.ValidateUserID("peer id", peerID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.FindByPair(ctx, viewerID, peerID)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, HistoryItem{
			ID:        m.MessageID,
			Content:   content.FromStored(m.Kind, m.Text, m.ImagePath),
			CreatedAt: m.CreatedAt,
			FromSelf:  m.SenderID == viewerID,
		})
	}
	return items, nil
}

// DeleteMessage lets the sender remove a message together with its
// attachment. An attachment that is already gone does not stop the delete,
// and one still referenced by another message is left in place. The file
// goes before the row: if the row delete then fails the record survives
// without its attachment.
func (s *chatService) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	if messageID == "" {
		return common.Validationf("message id is required")
	}
	if err := common.ValidateUserID("requester id", requesterID); err != nil {
		return err
	}

	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return fmt.Errorf("delete message %s: %w", messageID, common.ErrForbidden)
	}

	if msg.ImagePath != "" && s.media != nil {
		if err := s.removeAttachment(ctx, msg.ImagePath); err != nil {
			return err
		}
	}

	removed, err := s.repo.Delete(ctx, messageID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
	}
	return nil
}

// removeAttachment deletes the file only when the message being deleted is
// its last reference. Any user can resend a path they have seen.
func (s *chatService) removeAttachment(ctx context.Context, path string) error {
	refs, err := s.repo.CountByImagePath(ctx, path)
	if err != nil {
		return err
	}
	if refs > 1 {
		return nil
	}
	if err := s.media.RemoveMedia(ctx, path); err != nil && !errors.Is(err, dbmongo.ErrMediaNotFound) {
		return common.Persistence("remove attached media", err)
	}
	return nil
}

func (s *chatService) GetConversations(ctx context.Context, viewerID string) ([]conversation.Summary, error) {
	if err := common.ValidateUserID("viewer id", viewerID); err != nil {
		return nil, err
	}
	return s.aggregator.Conversations(ctx, viewerID)
}

func toRecord(m *dbmysql.Message) *Record {
	return &Record{
		ID:           m.MessageID,
		Content:      content.FromStored(m.Kind, m.Text, m.ImagePath),
		Sender:       m.SenderID,
		Participants: m.Participants(),
		CreatedAt:    m.CreatedAt,
	}
}
