package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/chat/content"
	"gochat/internal/chat/conversation"
	"gochat/internal/chat/service/mocks"
	"gochat/internal/common"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
)

// memoryRepo is a MessageRepository kept in a slice, with a clock that
// advances one millisecond per insert.
type memoryRepo struct {
	mu    sync.Mutex
	seq   uint
	clock time.Time
	rows  []*dbmysql.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memoryRepo) Create(_ context.Context, msg *dbmysql.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.clock = r.clock.Add(time.Millisecond)
	msg.ID = r.seq
	msg.MessageID = "m-" + string(rune('a'+r.seq))
	msg.CreatedAt = r.clock
	stored := *msg
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*dbmysql.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.MessageID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memoryRepo) FindByPair(_ context.Context, a, b string) ([]*dbmysql.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dbmysql.Message
	for _, m := range r.rows {
		if (m.ParticipantA == a && m.ParticipantB == b) || (m.ParticipantA == b && m.ParticipantB == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].After(out[i]) })
	return out, nil
}

func (r *memoryRepo) ListByParticipant(_ context.Context, userID string) ([]*dbmysql.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dbmysql.Message
	for _, m := range r.rows {
		if m.HasParticipant(userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.rows {
		if m.MessageID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memoryRepo) CountByImagePath(_ context.Context, path string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.ImagePath == path {
			n++
		}
	}
	return n, nil
}

type recordingRemover struct {
	removed []string
}

func (m *recordingRemover) RemoveMedia(_ context.Context, path string) error {
	m.removed = append(m.removed, path)
	return nil
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, _ interface{}) {
	n.calls = append(n.calls, recipientID)
}

func newMemoryService() (ChatService, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := NewChatService(repo, conversation.NewAggregator(repo), notifier, nil)
	return svc, repo, notifier
}

func TestChatService_SendMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockMessageRepository(ctrl)
	mockNotifier := mocks.NewMockNotifier(ctrl)
	service := NewChatService(mockRepo, conversation.NewAggregator(mockRepo), mockNotifier, nil)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		req         SendRequest
		mockSetup   func()
		expected    content.Content
		expectError error
	}{
		{
			name: "text message",
			req:  SendRequest{SenderID: "u1", RecipientID: "u2", Text: "hi"},
			mockSetup: func() {
				gomock.InOrder(
					mockRepo.EXPECT().
						Create(gomock.Any(), gomock.Any()).
						DoAndReturn(func(ctx context.Context, msg *dbmysql.Message) error {
							assert.Equal(t, "u1", msg.ParticipantA)
							assert.Equal(t, "u2", msg.ParticipantB)
							assert.Equal(t, "text", msg.Kind)
							msg.MessageID = "m-1"
							msg.CreatedAt = created
							return nil
						}),
					mockNotifier.EXPECT().
						Notify(gomock.Any(), "u2", gomock.Any()).
						Do(func(ctx context.Context, recipient string, payload interface{}) {
							record, ok := payload.(*Record)
							require.True(t, ok)
							assert.Equal(t, "m-1", record.ID)
						}),
				)
			},
			expected: content.Content{Kind: content.KindText, Text: "hi"},
		},
		{
			name: "text and image",
			req:  SendRequest{SenderID: "u1", RecipientID: "u2", Text: "look", ImagePath: "/media/abc"},
			mockSetup: func() {
				mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				mockNotifier.EXPECT().Notify(gomock.Any(), "u2", gomock.Any())
			},
			expected: content.Content{Kind: content.KindMixed, Text: "look", Image: "/media/abc"},
		},
		{
			name:        "missing recipient",
			req:         SendRequest{SenderID: "u1", Text: "hi"},
			mockSetup:   func() {},
			expectError: common.ErrValidation,
		},
		{
			name:        "missing sender",
			req:         SendRequest{RecipientID: "u2", Text: "hi"},
			mockSetup:   func() {},
			expectError: common.ErrValidation,
		},
		{
			name:        "empty content",
			req:         SendRequest{SenderID: "u1", RecipientID: "u2"},
			mockSetup:   func() {},
			expectError: common.ErrInvalidContent,
		},
		{
			name: "store failure does not notify",
			req:  SendRequest{SenderID: "u1", RecipientID: "u2", Text: "hi"},
			mockSetup: func() {
				mockRepo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Return(common.Persistence("create message", errors.New("database connection failed")))
			},
			expectError: common.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			record, err := service.SendMessage(context.Background(), tt.req)

			if tt.expectError != nil {
				assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
				assert.Nil(t, record)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, record.Content)
			assert.Equal(t, tt.req.SenderID, record.Sender)
			assert.Equal(t, [2]string{tt.req.SenderID, tt.req.RecipientID}, record.Participants)
		})
	}
}

func TestChatService_GetHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockMessageRepository(ctrl)
	service := NewChatService(mockRepo, conversation.NewAggregator(mockRepo), nil, nil)

	now := time.Now().UTC()
	messages := []*dbmysql.Message{
		{ID: 1, MessageID: "m-1", ParticipantA: "u1", ParticipantB: "u2", SenderID: "u1", Kind: "text", Text: "Hello", CreatedAt: now.Add(-10 * time.Minute)},
		{ID: 2, MessageID: "m-2", ParticipantA: "u2", ParticipantB: "u1", SenderID: "u2", Kind: "image", ImagePath: "img1.png", CreatedAt: now.Add(-5 * time.Minute)},
	}
	mockRepo.EXPECT().FindByPair(gomock.Any(), "u1", "u2").Return(messages, nil)

	items, err := service.GetHistory(context.Background(), "u1", "u2")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, HistoryItem{ID: "m-1", Content: content.Content{Kind: content.KindText, Text: "Hello"}, CreatedAt: messages[0].CreatedAt, FromSelf: true}, items[0])
	assert.Equal(t, HistoryItem{ID: "m-2", Content: content.Content{Kind: content.KindImage, Image: "img1.png"}, CreatedAt: messages[1].CreatedAt, FromSelf: false}, items[1])

	_, err = service.GetHistory(context.Background(), "", "u2")
	assert.True(t, errors.Is(err, common.ErrValidation))

	mockRepo.EXPECT().FindByPair(gomock.Any(), "u1", "u3").Return(nil, common.Persistence("fetch history", assert.AnError))
	_, err = service.GetHistory(context.Background(), "u1", "u3")
	assert.True(t, errors.Is(err, common.ErrPersistence))
}

func TestChatService_DeleteMessage(t *testing.T) {
	owned := func(image string) *dbmysql.Message {
		return &dbmysql.Message{MessageID: "m-1", ParticipantA: "u1", ParticipantB: "u2", SenderID: "u1", Kind: "image", ImagePath: image}
	}

	tests := []struct {
		name        string
		requester   string
		mockSetup   func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover)
		expectError error
	}{
		{
			name:      "sender deletes message and media",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				gomock.InOrder(
					repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil),
					repo.EXPECT().CountByImagePath(gomock.Any(), "/media/abc").Return(int64(1), nil),
					media.EXPECT().RemoveMedia(gomock.Any(), "/media/abc").Return(nil),
					repo.EXPECT().Delete(gomock.Any(), "m-1").Return(true, nil),
				)
			},
		},
		{
			name:      "text message skips media",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned(""), nil)
				repo.EXPECT().Delete(gomock.Any(), "m-1").Return(true, nil)
			},
		},
		{
			name:      "missing media is ignored",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/gone"), nil)
				repo.EXPECT().CountByImagePath(gomock.Any(), "/media/gone").Return(int64(1), nil)
				media.EXPECT().RemoveMedia(gomock.Any(), "/media/gone").Return(dbmongo.ErrMediaNotFound)
				repo.EXPECT().Delete(gomock.Any(), "m-1").Return(true, nil)
			},
		},
		{
			name:      "media failure keeps the record",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil)
				repo.EXPECT().CountByImagePath(gomock.Any(), "/media/abc").Return(int64(1), nil)
				media.EXPECT().RemoveMedia(gomock.Any(), "/media/abc").Return(errors.New("mongo down"))
			},
			expectError: common.ErrPersistence,
		},
		{
			name:      "row delete failure after media removal",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				gomock.InOrder(
					repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil),
					repo.EXPECT().CountByImagePath(gomock.Any(), "/media/abc").Return(int64(1), nil),
					media.EXPECT().RemoveMedia(gomock.Any(), "/media/abc").Return(nil),
					repo.EXPECT().Delete(gomock.Any(), "m-1").
						Return(false, common.Persistence("delete message", assert.AnError)),
				)
			},
			expectError: common.ErrPersistence,
		},
		{
			name:      "shared attachment is kept",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				gomock.InOrder(
					repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil),
					repo.EXPECT().CountByImagePath(gomock.Any(), "/media/abc").Return(int64(2), nil),
					repo.EXPECT().Delete(gomock.Any(), "m-1").Return(true, nil),
				)
			},
		},
		{
			name:      "reference count failure keeps everything",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil)
				repo.EXPECT().CountByImagePath(gomock.Any(), "/media/abc").
					Return(int64(0), common.Persistence("count attachment references", assert.AnError))
			},
			expectError: common.ErrPersistence,
		},
		{
			name:      "not the sender",
			requester: "u2",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned("/media/abc"), nil)
			},
			expectError: common.ErrForbidden,
		},
		{
			name:      "unknown message",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(nil, common.ErrNotFound)
			},
			expectError: common.ErrNotFound,
		},
		{
			name:      "row vanished before delete",
			requester: "u1",
			mockSetup: func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {
				repo.EXPECT().FindByID(gomock.Any(), "m-1").Return(owned(""), nil)
				repo.EXPECT().Delete(gomock.Any(), "m-1").Return(false, nil)
			},
			expectError: common.ErrNotFound,
		},
		{
			name:        "missing requester",
			requester:   "",
			mockSetup:   func(repo *mocks.MockMessageRepository, media *mocks.MockMediaRemover) {},
			expectError: common.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockMessageRepository(ctrl)
			media := mocks.NewMockMediaRemover(ctrl)
			tt.mockSetup(repo, media)

			service := NewChatService(repo, conversation.NewAggregator(repo), nil, media)
			err := service.DeleteMessage(context.Background(), "m-1", tt.requester)

			if tt.expectError != nil {
				assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChatService_GetConversations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockMessageRepository(ctrl)
	service := NewChatService(mockRepo, conversation.NewAggregator(mockRepo), nil, nil)

	mockRepo.EXPECT().ListByParticipant(gomock.Any(), "u1").Return([]*dbmysql.Message{
		{ID: 1, MessageID: "m-1", ParticipantA: "u1", ParticipantB: "u2", SenderID: "u1", Kind: "text", Text: "hi"},
	}, nil)

	summaries, err := service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u2", summaries[0].PeerID)

	_, err = service.GetConversations(context.Background(), " ")
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestChatService_EmptySendPersistsNothing(t *testing.T) {
	svc, repo, notifier := newMemoryService()
	ctx := context.Background()

	before, err := repo.Count(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "B"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, notifier.calls)
}

func TestChatService_HistoryOrderingAndFromSelf(t *testing.T) {
	svc, _, _ := newMemoryService()
	ctx := context.Background()

	senders := []string{"A", "B", "B", "A", "B"}
	for i, from := range senders {
		to := "B"
		if from == "B" {
			to = "A"
		}
		_, err := svc.SendMessage(ctx, SendRequest{SenderID: from, RecipientID: to, Text: string(rune('a' + i))})
		require.NoError(t, err)
	}
	// unrelated pair
	_, err := svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "C", Text: "other"})
	require.NoError(t, err)

	first, err := svc.GetHistory(ctx, "A", "B")
	require.NoError(t, err)
	require.Len(t, first, len(senders))
	for i, item := range first {
		if i > 0 {
			assert.False(t, item.CreatedAt.Before(first[i-1].CreatedAt))
		}
		assert.Equal(t, senders[i] == "A", item.FromSelf)
	}

	second, err := svc.GetHistory(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChatService_DeleteVisibility(t *testing.T) {
	svc, repo, _ := newMemoryService()
	ctx := context.Background()

	record, err := svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "B", Text: "secret"})
	require.NoError(t, err)

	err = svc.DeleteMessage(ctx, record.ID, "B")
	assert.True(t, errors.Is(err, common.ErrForbidden))
	_, err = repo.FindByID(ctx, record.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, record.ID, "A"))
	history, err := svc.GetHistory(ctx, "A", "B")
	require.NoError(t, err)
	assert.Empty(t, history)

	err = svc.DeleteMessage(ctx, record.ID, "A")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestChatService_DeleteKeepsForwardedAttachment(t *testing.T) {
	repo := newMemoryRepo()
	media := &recordingRemover{}
	svc := NewChatService(repo, conversation.NewAggregator(repo), nil, media)
	ctx := context.Background()
	const photo = "/media/65f000000000000000000001"

	original, err := svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "B", ImagePath: photo})
	require.NoError(t, err)
	forwarded, err := svc.SendMessage(ctx, SendRequest{SenderID: "B", RecipientID: "C", ImagePath: photo})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, forwarded.ID, "B"))
	assert.Empty(t, media.removed)

	history, err := svc.GetHistory(ctx, "A", "B")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, photo, history[0].Content.Image)

	require.NoError(t, svc.DeleteMessage(ctx, original.ID, "A"))
	assert.Equal(t, []string{photo}, media.removed)
}

func TestChatService_ConversationCounts(t *testing.T) {
	svc, _, _ := newMemoryService()
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "B", Text: text})
		require.NoError(t, err)
	}
	last, err := svc.SendMessage(ctx, SendRequest{SenderID: "A", RecipientID: "C", Text: "only", ImagePath: "/media/c"})
	require.NoError(t, err)

	summaries, err := svc.GetConversations(ctx, "A")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	got := map[string]conversation.Summary{}
	for _, s := range summaries {
		got[s.PeerID] = s
	}
	assert.Equal(t, 3, got["B"].MessageCount)
	assert.Equal(t, "three", got["B"].LastMessagePreview)
	assert.True(t, got["B"].LastMessageTime.Before(last.CreatedAt))
	assert.Equal(t, 1, got["C"].MessageCount)
	assert.Equal(t, "only"+content.ImageGlyph, got["C"].LastMessagePreview)
	assert.Equal(t, last.CreatedAt, got["C"].LastMessageTime)
}

func TestChatService_Scenario(t *testing.T) {
	svc, _, notifier := newMemoryService()
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, SendRequest{SenderID: "u1", RecipientID: "u2", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, content.Content{Kind: content.KindText, Text: "hi"}, first.Content)

	second, err := svc.SendMessage(ctx, SendRequest{SenderID: "u2", RecipientID: "u1", ImagePath: "img1.png"})
	require.NoError(t, err)
	assert.Equal(t, content.Content{Kind: content.KindImage, Image: "img1.png"}, second.Content)

	history, err := svc.GetHistory(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.True(t, history[0].FromSelf)
	assert.Equal(t, second.ID, history[1].ID)
	assert.False(t, history[1].FromSelf)

	summaries, err := svc.GetConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u2", summaries[0].PeerID)
	assert.Equal(t, 2, summaries[0].MessageCount)
	assert.Equal(t, content.ImageGlyph, summaries[0].LastMessagePreview)

	assert.Equal(t, []string{"u2", "u1"}, notifier.calls)
}
