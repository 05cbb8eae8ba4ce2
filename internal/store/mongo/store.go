// Package mongo stores chats in MongoDB. Messages live in their own
// collection keyed by chatId; cascade deletes run in a session transaction,
// so the deployment must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client   *mongo.Client
	chats    *mongo.Collection
	messages *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects, pings and makes sure the query indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		chats:    db.Collection(chatsCollection),
		messages: db.Collection(messagesCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.chats: {
			{Keys: bson.D{{Key: "participantUids", Value: 1}, {Key: "lastUpdated", Value: -1}, {Key: "_id", Value: -1}}},
		},
		s.messages: {
			{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	var doc chatDoc
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Chat{}, store.ErrNotFound
	}
	if err != nil {
		return chat.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return doc.toChat(), nil
}

func (s *Store) FindChatsByMember(ctx context.Context, uid string) ([]chat.Chat, error) {
	cur, err := s.chats.Find(ctx, bson.M{"participantUids": uid})
	if err != nil {
		return nil, fmt.Errorf("find chats for %s: %w", uid, err)
	}
	return decodeChats(ctx, cur)
}

func (s *Store) CreateChat(ctx context.Context, c chat.Chat) (string, error) {
	c.ID = uuid.NewString()
	c.LastUpdated = store.Timestamp(c.LastUpdated)
	if _, err := s.chats.InsertOne(ctx, toChatDoc(c)); err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return c.ID, nil
}

func (s *Store) UpdateLastMessage(ctx context.Context, chatID string, last chat.LastMessage, lastUpdated time.Time) error {
	last.Timestamp = store.Timestamp(last.Timestamp)
	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": bson.M{
		"lastMessage": toLastMessageDoc(last),
		"lastUpdated": store.Timestamp(lastUpdated),
	}})
	if err != nil {
		return fmt.Errorf("update last message of %s: %w", chatID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkLastMessageRead(ctx context.Context, chatID string, sentAt time.Time) error {
	filter := bson.M{
		"_id":                   chatID,
		"lastMessage.timestamp": store.Timestamp(sentAt),
	}
	update := bson.M{"$set": bson.M{"lastMessage.status": string(chat.StatusRead)}}
	if _, err := s.chats.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mark last message read on %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) ListChatsByMember(ctx context.Context, uid string, limit int, after *store.Cursor) ([]chat.Chat, error) {
	filter := bson.M{"participantUids": uid}
	for k, v := range cursorFilter("lastUpdated", after) {
		filter[k] = v
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastUpdated", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.chats.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list chats for %s: %w", uid, err)
	}
	return decodeChats(ctx, cur)
}

func (s *Store) AddMessage(ctx context.Context, chatID string, m chat.Message) (string, error) {
	doc := messageDoc{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: store.Timestamp(m.Timestamp),
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add message to %s: %w", chatID, err)
	}
	return doc.ID, nil
}

func (s *Store) HasMessages(ctx context.Context, chatID string) (bool, error) {
	err := s.messages.FindOne(ctx, bson.M{"chatId": chatID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check messages of %s: %w", chatID, err)
	}
	return true, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string, limit int, after *store.Cursor) ([]chat.Message, error) {
	filter := bson.M{"chatId": chatID}
	for k, v := range cursorFilter("timestamp", after) {
		filter[k] = v
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", chatID, err)
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", chatID, err)
	}
	out := make([]chat.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toMessage())
	}
	return out, nil
}

// cursorFilter selects documents past c in (field, _id) descending order.
func cursorFilter(field string, c *store.Cursor) bson.M {
	switch {
	case c == nil:
		return nil
	case c.ID == "":
		return bson.M{field: bson.M{"$lt": c.Time}}
	default:
		return bson.M{"$or": bson.A{
			bson.M{field: bson.M{"$lt": c.Time}},
			bson.M{field: c.Time, "_id": bson.M{"$lt": c.ID}},
		}}
	}
}

func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("delete chat %s: start session: %w", chatID, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, store.ErrNotFound
		}
		if _, err := s.messages.DeleteMany(ctx, bson.M{"chatId": chatID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func decodeChats(ctx context.Context, cur *mongo.Cursor) ([]chat.Chat, error) {
	defer cur.Close(ctx)

	var docs []chatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	out := make([]chat.Chat, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toChat())
	}
	return out, nil
}
