package db

import (
	"context"
	"fmt"
	"time"

	"github.com/abkawan/peachtree-bank/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventCollection holds the transaction audit trail
const EventCollection = "transaction_events"

// AuditStore records and reads transaction events.
type AuditStore interface {
	InsertEvent(ctx context.Context, event *models.TransactionEvent) error
	ListEvents(ctx context.Context, transactionID int64) ([]*models.TransactionEvent, error)
}

// MongoDB stores the transaction audit trail
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// creates a new MongoDB instance
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection(EventCollection)

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err = collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: collection,
	}, nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// InsertEvent appends an event. Redelivered events with a known event id are ignored.
func (m *MongoDB) InsertEvent(ctx context.Context, event *models.TransactionEvent) error {
	_, err := m.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
	}
	return nil
}

// ListEvents returns a transaction's events oldest first
func (m *MongoDB) ListEvents(ctx context.Context, transactionID int64) ([]*models.TransactionEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})

	cursor, err := m.collection.Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*models.TransactionEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}
