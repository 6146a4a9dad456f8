package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prepmate/prepmate-backend/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionRepository stores each attempt as a single document in
// the sessions collection.
type MongoSessionRepository struct {
	col *mongo.Collection
}

// NewMongoSessionRepository creates a MongoSessionRepository.
func NewMongoSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{col: db.Collection("sessions")}
}

// EnsureIndexes creates the indexes the engine depends on. The partial
// unique index on (user_id, quiz_id) over non-terminal statuses is what
// closes the create-or-resume race: a second concurrent insert hits a
// duplicate-key error instead of producing a second active session.
func (r *MongoSessionRepository) EnsureIndexes(ctx context.Context) error {
	activeStatuses := bson.A{}
	for _, s := range model.ActiveStatuses() {
		activeStatuses = append(activeStatuses, string(s))
	}

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "quiz_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": activeStatuses}}),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_active", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) Insert(ctx context.Context, session *model.Session) error {
	_, err := r.col.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateActiveSession
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

func (r *MongoSessionRepository) FindActive(ctx context.Context, userID, quizID string) (*model.Session, error) {
	var session model.Session
	err := r.col.FindOne(ctx, bson.M{
		"user_id": userID,
		"quiz_id": quizID,
		"status":  bson.M{"$in": activeStatusStrings()},
	}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &session, nil
}

func (r *MongoSessionRepository) Replace(ctx context.Context, session *model.Session) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *MongoSessionRepository) ListActive(ctx context.Context, userID string) ([]model.Session, error) {
	cursor, err := r.col.Find(ctx, bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": activeStatusStrings()},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode active sessions: %w", err)
	}
	return sessions, nil
}

func (r *MongoSessionRepository) ListHistory(ctx context.Context, userID string, filter HistoryFilter) ([]model.Session, int64, error) {
	query := bson.M{"user_id": userID}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.QuizID != "" {
		query["quiz_id"] = filter.QuizID
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, 0, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, total, nil
}

func (r *MongoSessionRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"status":      bson.M{"$in": bson.A{string(model.SessionStatusInProgress), string(model.SessionStatusPaused)}},
			"last_active": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":     string(model.SessionStatusExpired),
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	return res.ModifiedCount, nil
}

// PurgeOld deletes terminal sessions older than cutoff. Completed
// sessions age by end_time; expired ones have no end_time and age by
// last_active instead.
func (r *MongoSessionRepository) PurgeOld(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{
			"status":   string(model.SessionStatusCompleted),
			"end_time": bson.M{"$lt": cutoff},
		},
		bson.M{
			"status":      string(model.SessionStatusExpired),
			"last_active": bson.M{"$lt": cutoff},
		},
	}})
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.DeletedCount, nil
}

func activeStatusStrings() bson.A {
	statuses := bson.A{}
	for _, s := range model.ActiveStatuses() {
		statuses = append(statuses, string(s))
	}
	return statuses
}
