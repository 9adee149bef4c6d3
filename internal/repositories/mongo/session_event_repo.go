package mongo

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SessionEventsCollection = "session_events"

// SessionEventRepository is the append-only lifecycle log kept next to the
// relational session rows.
type SessionEventRepository interface {
	Record(ctx context.Context, e models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID, userID string, limit int64) ([]models.SessionEvent, error)
}

type sessionEventRepo struct {
	col *mongo.Collection
}

func NewSessionEventRepo(db *mongo.Database) SessionEventRepository {
	return &sessionEventRepo{col: db.Collection(SessionEventsCollection)}
}

func (r *sessionEventRepo) Record(ctx context.Context, e models.SessionEvent) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *sessionEventRepo) ListBySession(ctx context.Context, sessionID, userID string, limit int64) ([]models.SessionEvent, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID, "user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "at", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.SessionEvent{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
