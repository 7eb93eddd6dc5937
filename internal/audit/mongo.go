package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const collectionName = "order_transitions"

type entry struct {
	OrderID string    `bson:"order_id"`
	From    string    `bson:"from"`
	To      string    `bson:"to"`
	Actor   string    `bson:"actor"`
	At      time.Time `bson:"at"`
}

// MongoRecorder appends applied status transitions to a MongoDB collection.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoRecorder(ctx context.Context, uri, database string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	collection := client.Database(database).Collection(collectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoRecorder{client: client, collection: collection}, nil
}

func (r *MongoRecorder) Record(ctx context.Context, t domain.Transition) error {
	_, err := r.collection.InsertOne(ctx, toEntry(t))
	return err
}

// History returns the transitions of one order, oldest first.
func (r *MongoRecorder) History(ctx context.Context, orderID string) ([]domain.Transition, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID},
		options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var entries []entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	history := make([]domain.Transition, 0, len(entries))
	for _, e := range entries {
		history = append(history, fromEntry(e))
	}
	return history, nil
}

func (r *MongoRecorder) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func toEntry(t domain.Transition) entry {
	return entry{
		OrderID: t.OrderID,
		From:    string(t.From),
		To:      string(t.To),
		Actor:   t.Actor,
		At:      t.At.UTC(),
	}
}

func fromEntry(e entry) domain.Transition {
	return domain.Transition{
		OrderID: e.OrderID,
		From:    domain.OrderStatus(e.From),
		To:      domain.OrderStatus(e.To),
		Actor:   e.Actor,
		At:      e.At.UTC(),
	}
}
