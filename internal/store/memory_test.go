package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

func TestCreateOrGetSessionCanonicalPair(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()

	first, created, err := st.CreateOrGetSession(ctx, "alice", "bob")
	req.NoError(err)
	req.True(created)
	req.NotEqual(first.Participant1ID, first.Participant2ID)

	// same pair in either order resolves to the same session
	second, created, err := st.CreateOrGetSession(ctx, "bob", "alice")
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, second.ID)

	_, _, err = st.CreateOrGetSession(ctx, "alice", "alice")
	req.ErrorIs(err, ErrInvalidParticipants)
	_, _, err = st.CreateOrGetSession(ctx, "alice", "")
	req.ErrorIs(err, ErrInvalidParticipants)
}

func TestAppendMessageUpdatesSessionPointer(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()
	sess, _, err := st.CreateOrGetSession(ctx, "alice", "bob")
	req.NoError(err)

	m := &model.ChatMessage{SessionID: sess.ID, SenderID: "alice", Content: "hi", MessageType: model.MessageTypeText}
	req.NoError(st.AppendMessage(ctx, m))
	req.NotEmpty(m.ID)
	req.False(m.CreatedAt.IsZero())

	after, err := st.FindSession(ctx, sess.ID)
	req.NoError(err)
	req.Equal(m.ID, after.LastMessageID)
	req.False(after.LastActiveAt.Before(sess.LastActiveAt))

	err = st.AppendMessage(ctx, &model.ChatMessage{SessionID: "missing", SenderID: "alice", Content: "x"})
	req.ErrorIs(err, ErrSessionNotFound)
}

func TestListMessagesPagesAscending(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()
	sess, _, err := st.CreateOrGetSession(ctx, "alice", "bob")
	req.NoError(err)

	contents := []string{"a", "b", "c", "d", "e"}
	for _, c := range contents {
		req.NoError(st.AppendMessage(ctx, &model.ChatMessage{SessionID: sess.ID, SenderID: "alice", Content: c}))
	}

	// page 1 holds the newest two, in chronological order
	page1, err := st.ListMessages(ctx, sess.ID, 1, 2)
	req.NoError(err)
	req.Len(page1, 2)
	req.Equal("d", page1[0].Content)
	req.Equal("e", page1[1].Content)

	page3, err := st.ListMessages(ctx, sess.ID, 3, 2)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal("a", page3[0].Content)

	empty, err := st.ListMessages(ctx, sess.ID, 4, 2)
	req.NoError(err)
	req.Empty(empty)
}

func TestMarkMessagesReadFiltersAndIdempotent(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()
	sess, _, err := st.CreateOrGetSession(ctx, "alice", "bob")
	req.NoError(err)

	fromAlice := &model.ChatMessage{SessionID: sess.ID, SenderID: "alice", Content: "hi"}
	fromBob := &model.ChatMessage{SessionID: sess.ID, SenderID: "bob", Content: "yo"}
	req.NoError(st.AppendMessage(ctx, fromAlice))
	req.NoError(st.AppendMessage(ctx, fromBob))

	// bob can only flip alice's message, not his own
	flipped, err := st.MarkMessagesRead(ctx, sess.ID, "bob", []string{fromAlice.ID, fromBob.ID})
	req.NoError(err)
	req.Equal([]string{fromAlice.ID}, flipped)

	flipped, err = st.MarkMessagesRead(ctx, sess.ID, "bob", []string{fromAlice.ID, fromBob.ID})
	req.NoError(err)
	req.Empty(flipped)

	n, err := st.MarkSessionRead(ctx, sess.ID, "alice")
	req.NoError(err)
	req.EqualValues(1, n)
	n, err = st.MarkSessionRead(ctx, sess.ID, "alice")
	req.NoError(err)
	req.Zero(n)
}

func TestListSessionsSummaries(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()

	withBob, _, err := st.CreateOrGetSession(ctx, "alice", "bob")
	req.NoError(err)
	withCarol, _, err := st.CreateOrGetSession(ctx, "alice", "carol")
	req.NoError(err)

	req.NoError(st.AppendMessage(ctx, &model.ChatMessage{SessionID: withBob.ID, SenderID: "bob", Content: "first"}))
	req.NoError(st.AppendMessage(ctx, &model.ChatMessage{SessionID: withCarol.ID, SenderID: "carol", Content: "second"}))
	req.NoError(st.AppendMessage(ctx, &model.ChatMessage{SessionID: withCarol.ID, SenderID: "carol", Content: "third"}))

	sums, err := st.ListSessions(ctx, "alice")
	req.NoError(err)
	req.Len(sums, 2)
	// most recently active first
	req.Equal(withCarol.ID, sums[0].Session.ID)
	req.Equal("carol", sums[0].OtherUserID)
	req.EqualValues(2, sums[0].UnreadCount)
	req.Equal("third", sums[0].LastMessage.Content)
	req.Equal(withBob.ID, sums[1].Session.ID)
	req.EqualValues(1, sums[1].UnreadCount)

	none, err := st.ListSessions(ctx, "mallory")
	req.NoError(err)
	req.Empty(none)
}

func TestNotificationsLifecycle(t *testing.T) {
	req := require.New(t)
	st := NewMemoryStore()
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		req.NoError(st.CreateNotification(ctx, &model.Notification{UserID: "bob", Title: title, Type: "new_message"}))
	}

	page, unread, err := st.ListNotifications(ctx, "bob", 1, 2)
	req.NoError(err)
	req.EqualValues(3, unread)
	req.Len(page, 2)
	// newest first
	req.Equal("three", page[0].Title)
	req.Equal("two", page[1].Title)

	req.NoError(st.MarkNotificationRead(ctx, "bob", page[0].ID))
	_, unread, err = st.ListNotifications(ctx, "bob", 1, 10)
	req.NoError(err)
	req.EqualValues(2, unread)

	req.ErrorIs(st.MarkNotificationRead(ctx, "alice", page[0].ID), ErrNotificationNotFound)
}
