package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

// MongoStore is the production Store. Document ids are ObjectID hex
// strings generated on insert so entities round-trip as plain strings.
type MongoStore struct {
	client        *mongo.Client
	sessions      *mongo.Collection
	messages      *mongo.Collection
	notifications *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:        client,
		sessions:      db.Collection("chat_sessions"),
		messages:      db.Collection("chat_messages"),
		notifications: db.Collection("notifications"),
	}
}

// EnsureIndexes creates the unique pair index that enforces one
// session per unordered participant pair, plus the query indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participant1_id", Value: 1}, {Key: "last_active_at", Value: -1}}},
		{Keys: bson.D{{Key: "participant2_id", Value: 1}, {Key: "last_active_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("session indexes: %w", err)
	}
	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "is_read", Value: 1}, {Key: "sender_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var sess model.ChatSession
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

func (s *MongoStore) CreateOrGetSession(ctx context.Context, userID, otherID string) (*model.ChatSession, bool, error) {
	if userID == "" || otherID == "" || userID == otherID {
		return nil, false, ErrInvalidParticipants
	}
	key := model.PairKey(userID, otherID)

	var existing model.ChatSession
	err := s.sessions.FindOne(ctx, bson.M{"pair_key": key}).Decode(&existing)
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("find session by pair: %w", err)
	}

	now := time.Now().UTC()
	sess := &model.ChatSession{
		ID:             primitive.NewObjectID().Hex(),
		Participant1ID: userID,
		Participant2ID: otherID,
		PairKey:        key,
		LastActiveAt:   now,
		CreatedAt:      now,
	}
	if _, err := s.sessions.InsertOne(ctx, sess); err != nil {
		// lost the race: the unique pair index kicked in, fetch the winner
		if mongo.IsDuplicateKeyError(err) {
			var won model.ChatSession
			if ferr := s.sessions.FindOne(ctx, bson.M{"pair_key": key}).Decode(&won); ferr == nil {
				return &won, false, nil
			}
		}
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return sess, true, nil
}

func (s *MongoStore) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participant1_id": userID},
		bson.M{"participant2_id": userID},
	}}
	cur, err := s.sessions.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "last_active_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)

	var out []SessionSummary
	for cur.Next(ctx) {
		var sess model.ChatSession
		if err := cur.Decode(&sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sum := SessionSummary{Session: sess, OtherUserID: sess.OtherParticipant(userID)}
		if sess.LastMessageID != "" {
			var last model.ChatMessage
			if err := s.messages.FindOne(ctx, bson.M{"_id": sess.LastMessageID}).Decode(&last); err == nil {
				sum.LastMessage = &last
			}
		}
		unread, err := s.messages.CountDocuments(ctx, bson.M{
			"session_id": sess.ID,
			"sender_id":  bson.M{"$ne": userID},
			"is_read":    false,
		})
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		sum.UnreadCount = unread
		out = append(out, sum)
	}
	return out, cur.Err()
}

// AppendMessage inserts the message and bumps the session pointer in
// one transaction so last_message_id never references a message that
// was not written, and cannot point backwards under concurrent sends.
func (s *MongoStore) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = time.Now().UTC()

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res := s.sessions.FindOneAndUpdate(sc,
			bson.M{"_id": m.SessionID},
			bson.M{
				"$set": bson.M{"last_message_id": m.ID},
				"$max": bson.M{"last_active_at": m.CreatedAt},
			})
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		if res.Err() != nil {
			return nil, res.Err()
		}
		if _, err := s.messages.InsertOne(sc, m); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context, sessionID string, page, limit int64) ([]model.ChatMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	cur, err := s.messages.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip((page-1)*limit).
			SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	// stored newest-first, returned in chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkMessagesRead flips the given unread messages and returns the ids
// it flipped. Find-then-update runs without a transaction: two
// concurrent identical calls may both observe a message unread and
// both report it flipped. The flip itself commutes, so stored state
// stays correct; repeated sequential calls return nothing.
func (s *MongoStore) MarkMessagesRead(ctx context.Context, sessionID, readerID string, messageIDs []string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"_id":        bson.M{"$in": messageIDs},
		"session_id": sessionID,
		"sender_id":  bson.M{"$ne": readerID},
		"is_read":    false,
	}
	cur, err := s.messages.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find unread: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode unread ids: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	flipped := make([]string, 0, len(docs))
	for _, d := range docs {
		flipped = append(flipped, d.ID)
	}
	_, err = s.messages.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": flipped}},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return flipped, nil
}

func (s *MongoStore) MarkSessionRead(ctx context.Context, sessionID, readerID string) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{
			"session_id": sessionID,
			"sender_id":  bson.M{"$ne": readerID},
			"is_read":    false,
		},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, fmt.Errorf("mark session read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = primitive.NewObjectID().Hex()
	n.CreatedAt = time.Now().UTC()
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string, page, limit int64) ([]model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	cur, err := s.notifications.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip((page-1)*limit).
			SetLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode notifications: %w", err)
	}
	unread, err := s.notifications.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
	if err != nil {
		return nil, 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return out, unread, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": notificationID, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
