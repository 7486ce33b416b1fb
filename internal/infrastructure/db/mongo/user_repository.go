package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"
)

// UserRepository implements ports.UserRepository on MongoDB. Integer ids are
// allocated from a counters document; email uniqueness is enforced by index.
type UserRepository struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		coll:     db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
	}
}

type mongoUser struct {
	ID             int64   `bson:"_id"`
	Email          string  `bson:"email"`
	HashedPassword []byte  `bson:"hashed_password"`
	SessionID      *string `bson:"session_id,omitempty"`
	ResetToken     *string `bson:"reset_token,omitempty"`
	CreatedAt      int64   `bson:"created_at"`
	UpdatedAt      int64   `bson:"updated_at"`
}

type counter struct {
	Seq int64 `bson:"seq"`
}

// EnsureIndexes creates the unique email index. Safe to call on every start.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (r *UserRepository) AddUser(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := mongoUser{
		ID:             id,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *UserRepository) FindUserBy(ctx context.Context, c domain.Criteria) (*domain.User, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})

	var mu mongoUser
	if err := r.coll.FindOne(ctx, bson.M{fieldKey(c.Field): c.Value}, opts).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find user by %s: %w", c.Field, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, id int64, fields domain.Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, buildUpdate(fields, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateUserIf folds expect into the update filter so the check and the write
// are a single document operation.
func (r *UserRepository) UpdateUserIf(ctx context.Context, id int64, expect domain.Criteria, fields domain.Fields) error {
	if err := expect.Validate(); err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	filter := bson.M{"_id": id}
	if expect.Field != domain.FieldID {
		filter[fieldKey(expect.Field)] = expect.Value
	} else if expect.Value != id {
		return fmt.Errorf("update user %d where %s: %w", id, expect, domain.ErrNotFound)
	}

	res, err := r.coll.UpdateOne(ctx, filter, buildUpdate(fields, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update user %d where %s: %w", id, expect, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *UserRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counter
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": usersCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("allocate user id: %w", err)
	}
	return c.Seq, nil
}

// buildUpdate translates validated fields into $set / $unset operators.
func buildUpdate(fields domain.Fields, now time.Time) bson.M {
	set := bson.M{"updated_at": now.Unix()}
	unset := bson.M{}

	for name, v := range fields {
		if name == domain.FieldHashedPassword {
			set[fieldKey(name)] = v
			continue
		}
		s, _ := domain.OptionalString(v)
		if s == nil {
			unset[fieldKey(name)] = ""
		} else {
			set[fieldKey(name)] = *s
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func fieldKey(f domain.Field) string {
	if f == domain.FieldID {
		return "_id"
	}
	return string(f)
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:             mu.ID,
		Email:          mu.Email,
		HashedPassword: mu.HashedPassword,
		SessionID:      mu.SessionID,
		ResetToken:     mu.ResetToken,
		CreatedAt:      unixToTime(mu.CreatedAt),
		UpdatedAt:      unixToTime(mu.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
