package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"chat-relay/internal/models"
)

// messageDocument maps to the messages collection.
type messageDocument struct {
	ID        bson.ObjectID    `bson:"_id,omitempty"`
	ChatKey   string           `bson:"chatKey"`
	From      string           `bson:"from"`
	To        string           `bson:"to"`
	Text      string           `bson:"text,omitempty"`
	Media     *models.Media    `bson:"media,omitempty"`
	ReplyTo   *models.ReplyRef `bson:"replyTo,omitempty"`
	CreatedAt int64            `bson:"createdAt"`
}

// MongoMessageRepo stores messages in a MongoDB collection.
type MongoMessageRepo struct {
	coll *mongo.Collection
}

// NewMongoMessageRepo constructs MongoMessageRepo over the given collection.
func NewMongoMessageRepo(coll *mongo.Collection) *MongoMessageRepo {
	return &MongoMessageRepo{coll: coll}
}

// EnsureIndexes creates the (chatKey, createdAt) index used by History.
func (r *MongoMessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatKey", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

// Append inserts one message document.
func (r *MongoMessageRepo) Append(ctx context.Context, msg models.Message, chatKey string) error {
	_, err := r.coll.InsertOne(ctx, messageDocument{
		ChatKey:   chatKey,
		From:      msg.From,
		To:        msg.To,
		Text:      msg.Text,
		Media:     msg.Media,
		ReplyTo:   msg.ReplyTo,
		CreatedAt: msg.CreatedAt,
	})
	return err
}

// History returns the documents for chatKey sorted by createdAt ascending.
func (r *MongoMessageRepo) History(ctx context.Context, chatKey string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"chatKey": chatKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, models.Message{
			From:      d.From,
			To:        d.To,
			Text:      d.Text,
			Media:     d.Media,
			ReplyTo:   d.ReplyTo,
			CreatedAt: d.CreatedAt,
		})
	}
	return msgs, nil
}
