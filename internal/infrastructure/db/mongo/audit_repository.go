package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// InsertEvent appends an event to the auth_events collection.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	doc := bson.M{
		"_id":         event.ID,
		"type":        string(event.Type),
		"username":    event.Username,
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.Detail != "" {
		doc["detail"] = event.Detail
	}

	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

// EnsureIndexes indexes events by username and time.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}, {Key: "occurred_at", Value: -1}},
		Options: options.Index().SetName("username_occurred_at"),
	})
	return err
}

// ListByUsername returns the most recent events for username, newest first.
func (r *AuditRepository) ListByUsername(ctx context.Context, username string, limit int64) ([]domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{"username": username},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID         string    `bson:"_id"`
		Type       string    `bson:"type"`
		Username   string    `bson:"username"`
		Detail     string    `bson:"detail,omitempty"`
		OccurredAt time.Time `bson:"occurred_at"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.AuditEvent{
			ID:         d.ID,
			Type:       domain.AuditEventType(d.Type),
			Username:   d.Username,
			Detail:     d.Detail,
			OccurredAt: d.OccurredAt.UTC(),
		})
	}
	return out, nil
}
