package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserStore persists accounts in a Mongo collection. The client is
// injected; its lifecycle belongs to the process entry point.
type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(ctx context.Context, cli *mongo.Client, db, coll string) (*MongoUserStore, error) {
	c := cli.Database(db).Collection(coll)

	// Unique indexes back the Add-time duplicate checks.
	_, _ = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoUserStore{coll: c}, nil
}

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email"`
	PassHash       string             `bson:"pass_hash"`
	Role           string             `bson:"role"`
	IsActive       bool               `bson:"is_active"`
	SubscribedTags []string           `bson:"subscribed_tags"`
	LastLoginAt    *time.Time         `bson:"last_login_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d *userDoc) toUser() *User {
	role := Role(d.Role)
	if role != RoleAdmin {
		role = RoleUser
	}
	return &User{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Email:          d.Email,
		PassHash:       d.PassHash,
		Role:           role,
		IsActive:       d.IsActive,
		SubscribedTags: d.SubscribedTags,
		LastLoginAt:    d.LastLoginAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (s *MongoUserStore) Add(ctx context.Context, u *User) error {
	now := time.Now()
	doc := userDoc{
		ID:             primitive.NewObjectID(),
		Username:       u.Username,
		Email:          normalizeEmail(u.Email),
		PassHash:       u.PassHash,
		Role:           string(u.Role),
		IsActive:       u.IsActive,
		SubscribedTags: u.SubscribedTags,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return err
	}
	u.ID = doc.ID.Hex()
	u.Email = doc.Email
	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter any) (*User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func idFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return bson.M{"_id": oid}, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, filter)
}

func (s *MongoUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoUserStore) List(ctx context.Context) ([]*User, error) {
	cur, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toUser())
	}
	return out, cur.Err()
}

func (s *MongoUserStore) updateByID(ctx context.Context, id string, update bson.M) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{"last_login_at": at, "updated_at": time.Now()},
	})
}

func (s *MongoUserStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now()}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.Email != nil {
		set["email"] = normalizeEmail(*upd.Email)
	}
	if upd.SubscribedTags != nil {
		set["subscribed_tags"] = *upd.SubscribedTags
	}

	var doc userDoc
	err = s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateUser
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id, newHash string) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{"pass_hash": newHash, "updated_at": time.Now()},
	})
}

func (s *MongoUserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now()},
	})
}

func (s *MongoUserStore) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"last_login_at": bson.M{"$gte": since}})
}
