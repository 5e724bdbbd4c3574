// Package mongo implements the progress record store on MongoDB. One
// document per user keyed by user id; saves are conditional on the
// version field and the activity log is capped with $push/$slice.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// unconditionalAttempts bounds retries of saves that did not ask for a
// specific version but raced with another writer.
const unconditionalAttempts = 3

// ErrInvalidURI is returned for a connection string that cannot be parsed.
var ErrInvalidURI = errors.New("mongo: invalid connection URI")

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

// Store implements progress.Store on a collection.
type Store struct {
	collection *mongo.Collection
	window     int
	now        func() time.Time
}

var _ progress.Store = (*Store)(nil)

// NewStore creates a store over db.collection.
func NewStore(db *mongo.Database, collection string, window int, now func() time.Time) *Store {
	if window <= 0 {
		window = progress.DefaultActivityWindow
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{collection: db.Collection(collection), window: window, now: now}
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

// Get returns the stored record, or nil when absent.
func (s *Store) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	var p progress.UserProgress
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.PersistenceError("Get", err)
	}
	p.Normalize()
	return &p, nil
}

// Create inserts a zero-valued record. An existing record is returned as is.
func (s *Store) Create(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p := progress.NewUserProgress(userID, s.now())
	p.Version = 1

	_, err := s.collection.InsertOne(ctx, p)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, shared.PersistenceError("Create", err)
	}

	stored, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, shared.PersistenceError("Create", fmt.Errorf("record %q vanished after insert", userID))
	}
	return stored, nil
}

// Save reads the current version, then issues one update filtered on it.
// A save with ExpectedVersion set fails on mismatch; one without it retries
// a few times against the latest version.
func (s *Store) Save(ctx context.Context, userID string, patch progress.Patch) (*progress.UserProgress, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, shared.NotFoundError("progress", "Save", fmt.Sprintf("no record for user %q", userID))
		}
		if patch.ExpectedVersion > 0 && current.Version != patch.ExpectedVersion {
			return nil, shared.ConflictError("Save", userID)
		}

		update := buildUpdate(current, patch, s.window, s.now())
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var saved progress.UserProgress
		err = s.collection.FindOneAndUpdate(ctx,
			bson.M{"_id": userID, "version": current.Version},
			update, opts,
		).Decode(&saved)

		switch {
		case err == nil:
			saved.Normalize()
			return &saved, nil
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, shared.PersistenceError("Save", err)
		case patch.ExpectedVersion > 0 || attempt >= unconditionalAttempts:
			return nil, shared.ConflictError("Save", userID)
		}
	}
}

// AppendActivity pushes one entry onto the capped log.
func (s *Store) AppendActivity(ctx context.Context, userID string, activity progress.Activity) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$push": bson.M{"activities": bson.M{"$each": []progress.Activity{activity}, "$slice": -s.window}},
		"$inc":  bson.M{"version": 1},
		"$set":  bson.M{"updatedAt": s.now()},
	})
	if err != nil {
		return shared.PersistenceError("AppendActivity", err)
	}
	if res.MatchedCount == 0 {
		return shared.NotFoundError("progress", "AppendActivity", fmt.Sprintf("no record for user %q", userID))
	}
	return nil
}

// RecentActivities returns up to k entries, newest first.
func (s *Store) RecentActivities(ctx context.Context, userID string, k int) ([]progress.Activity, error) {
	var doc struct {
		Activities []progress.Activity `bson:"activities"`
	}
	opts := options.FindOne().SetProjection(bson.M{"activities": 1})
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []progress.Activity{}, nil
	}
	if err != nil {
		return nil, shared.PersistenceError("RecentActivities", err)
	}
	return progress.NewestFirst(doc.Activities, k), nil
}

// buildUpdate translates a patch into an update document against the
// version that was read. Achievement ids already in current are skipped
// so stored entries are never re-dated.
func buildUpdate(current *progress.UserProgress, pt progress.Patch, window int, now time.Time) bson.M {
	set := bson.M{
		"version":   current.Version + 1,
		"updatedAt": now,
	}

	put := func(key string, v any, present bool) {
		if present {
			set[key] = v
		}
	}
	put("majorsExplored", deref(pt.MajorsExplored), pt.MajorsExplored != nil)
	put("roadmapsViewed", deref(pt.RoadmapsViewed), pt.RoadmapsViewed != nil)
	put("assessmentsTaken", deref(pt.AssessmentsTaken), pt.AssessmentsTaken != nil)
	put("majorProgress", deref(pt.MajorProgress), pt.MajorProgress != nil)
	put("goals", deref(pt.Goals), pt.Goals != nil)
	put("currentStreak", deref(pt.CurrentStreak), pt.CurrentStreak != nil)
	put("longestStreak", deref(pt.LongestStreak), pt.LongestStreak != nil)
	put("lastActivityDate", deref(pt.LastActivityDate), pt.LastActivityDate != nil)
	put("totalDaysActive", deref(pt.TotalDaysActive), pt.TotalDaysActive != nil)
	put("welcomeChallengesCompleted", deref(pt.WelcomeChallengesCompleted), pt.WelcomeChallengesCompleted != nil)
	put("lastWelcomeChallengeDate", deref(pt.LastWelcomeChallengeDate), pt.LastWelcomeChallengeDate != nil)
	put("totalPoints", deref(pt.TotalPoints), pt.TotalPoints != nil)
	put("level", deref(pt.Level), pt.Level != nil)
	put("experience", deref(pt.Experience), pt.Experience != nil)

	for id, state := range pt.Achievements {
		if _, ok := current.Achievements[id]; ok {
			continue
		}
		set["achievements."+id] = state
	}

	update := bson.M{"$set": set}
	if len(pt.NewActivities) > 0 {
		update["$push"] = bson.M{"activities": bson.M{
			"$each":  pt.NewActivities,
			"$slice": -window,
		}}
	}
	return update
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
