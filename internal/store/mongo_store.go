package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// ---------- QUESTION STORE ----------

// MongoQuestionStore persists questions. The client is injected; its
// lifecycle belongs to the process entry point.
type MongoQuestionStore struct {
	coll *mongo.Collection
}

func NewMongoQuestionStore(ctx context.Context, cli *mongo.Client, db, coll string) (*MongoQuestionStore, error) {
	c := cli.Database(db).Collection(coll)
	_, _ = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tags", Value: 1}},
	})
	return &MongoQuestionStore{coll: c}, nil
}

// optionValue decodes both the canonical {content, isCorrect} document
// form and the legacy plain-string form of a persisted option.
type optionValue struct {
	Content   string
	IsCorrect bool
	legacy    bool
}

func (o *optionValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.String:
		s, _, ok := bsoncore.ReadString(data)
		if !ok {
			return errors.New("corrupt option string")
		}
		*o = optionValue{Content: s, legacy: true}
		return nil
	case bsontype.EmbeddedDocument:
		var aux struct {
			Content   string `bson:"content"`
			IsCorrect bool   `bson:"isCorrect"`
		}
		if err := bson.Unmarshal(data, &aux); err != nil {
			return err
		}
		*o = optionValue{Content: aux.Content, IsCorrect: aux.IsCorrect}
		return nil
	default:
		return fmt.Errorf("unexpected option bson type %s", t)
	}
}

type questionDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Type        string             `bson:"type"`
	Content     string             `bson:"content"`
	Options     []optionValue      `bson:"options"`
	Answer      bson.RawValue      `bson:"answer,omitempty"` // legacy records only
	Explanation string             `bson:"explanation,omitempty"`
	Difficulty  string             `bson:"difficulty"`
	Tags        []string           `bson:"tags"`
	Source      string             `bson:"source,omitempty"`
	CreatedBy   string             `bson:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *questionDoc) toQuestion() *Question {
	opts := make([]Option, len(d.Options))
	legacy := false
	contents := make([]string, len(d.Options))
	for i, o := range d.Options {
		opts[i] = Option{Content: o.Content, IsCorrect: o.IsCorrect}
		contents[i] = o.Content
		legacy = legacy || o.legacy
	}
	if legacy {
		opts = RepairOptions(contents, legacyAnswerTokens(d.Answer))
	}
	return &Question{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Type:        QuestionType(d.Type),
		Content:     d.Content,
		Options:     opts,
		Explanation: d.Explanation,
		Difficulty:  Difficulty(d.Difficulty),
		Tags:        d.Tags,
		Source:      d.Source,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func questionFields(q *Question) bson.M {
	opts := make([]bson.M, len(q.Options))
	for i, o := range q.Options {
		opts[i] = bson.M{"content": o.Content, "isCorrect": o.IsCorrect}
	}
	return bson.M{
		"title":       q.Title,
		"type":        string(q.Type),
		"content":     q.Content,
		"options":     opts,
		"explanation": q.Explanation,
		"difficulty":  string(q.Difficulty),
		"tags":        q.Tags,
		"source":      q.Source,
		"createdBy":   q.CreatedBy,
	}
}

func questionIDFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrQuestionNotFound
	}
	return bson.M{"_id": oid}, nil
}

func listFilterQuery(f ListFilter) bson.M {
	query := bson.M{}
	if f.Type != "" {
		query["type"] = string(f.Type)
	}
	if f.Difficulty != "" {
		query["difficulty"] = string(f.Difficulty)
	}
	if f.Tag != "" {
		query["tags"] = f.Tag
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: f.Search, Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"content": re},
		}
	}
	return query
}

func (s *MongoQuestionStore) decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*Question, error) {
	defer cur.Close(ctx)
	var out []*Question
	for cur.Next(ctx) {
		var doc questionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toQuestion())
	}
	return out, cur.Err()
}

func (s *MongoQuestionStore) List(ctx context.Context, f ListFilter) ([]*Question, error) {
	cur, err := s.coll.Find(ctx, listFilterQuery(f),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(ctx, cur)
}

func (s *MongoQuestionStore) Get(ctx context.Context, id string) (*Question, error) {
	filter, err := questionIDFilter(id)
	if err != nil {
		return nil, err
	}
	var doc questionDoc
	err = s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toQuestion(), nil
}

func (s *MongoQuestionStore) Create(ctx context.Context, q *Question) error {
	now := time.Now()
	oid := primitive.NewObjectID()
	doc := questionFields(q)
	doc["_id"] = oid
	doc["createdAt"] = now
	doc["updatedAt"] = now
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	q.ID = oid.Hex()
	q.CreatedAt = now
	q.UpdatedAt = now
	return nil
}

func (s *MongoQuestionStore) Update(ctx context.Context, id string, q *Question) (*Question, error) {
	filter, err := questionIDFilter(id)
	if err != nil {
		return nil, err
	}
	set := questionFields(q)
	set["updatedAt"] = time.Now()

	var doc questionDoc
	err = s.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": set, "$unset": bson.M{"answer": ""}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toQuestion(), nil
}

func (s *MongoQuestionStore) Delete(ctx context.Context, id string) (*Question, error) {
	filter, err := questionIDFilter(id)
	if err != nil {
		return nil, err
	}
	var doc questionDoc
	err = s.coll.FindOneAndDelete(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toQuestion(), nil
}

func (s *MongoQuestionStore) BulkUpsert(ctx context.Context, qs []*Question) (BulkResult, error) {
	if len(qs) == 0 {
		return BulkResult{}, nil
	}
	models := make([]mongo.WriteModel, 0, len(qs))
	now := time.Now()
	for _, q := range qs {
		oid, err := primitive.ObjectIDFromHex(q.ID)
		if err != nil {
			oid = primitive.NewObjectID()
		}
		set := questionFields(q)
		set["updatedAt"] = now
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetUpdate(bson.M{
				"$set":         set,
				"$setOnInsert": bson.M{"createdAt": now},
			}).
			SetUpsert(true))
	}
	res, err := s.coll.BulkWrite(ctx, models)
	if err != nil {
		return BulkResult{}, err
	}
	return BulkResult{Matched: res.MatchedCount, Upserted: res.UpsertedCount}, nil
}

func (s *MongoQuestionStore) Random(ctx context.Context, n int) ([]*Question, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.M{"size": n}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(ctx, cur)
}

func (s *MongoQuestionStore) Tags(ctx context.Context) ([]string, error) {
	raw, err := s.coll.Distinct(ctx, "tags", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if t, ok := v.(string); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// ---------- MISTAKE STORE ----------

type MongoMistakeStore struct {
	coll *mongo.Collection
}

func NewMongoMistakeStore(ctx context.Context, cli *mongo.Client, db, coll string) (*MongoMistakeStore, error) {
	c := cli.Database(db).Collection(coll)
	_, _ = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "questionId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return &MongoMistakeStore{coll: c}, nil
}

type mistakeDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     primitive.ObjectID `bson:"userId"`
	QuestionID primitive.ObjectID `bson:"questionId"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func (d *mistakeDoc) toMistake() *Mistake {
	return &Mistake{
		ID:         d.ID.Hex(),
		UserID:     d.UserID.Hex(),
		QuestionID: d.QuestionID.Hex(),
		CreatedAt:  d.CreatedAt,
	}
}

func (s *MongoMistakeStore) Add(ctx context.Context, userID, questionID string) (*Mistake, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("bad user id: %w", err)
	}
	qid, err := primitive.ObjectIDFromHex(questionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}

	var doc mistakeDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"userId": uid, "questionId": qid},
		bson.M{"$set": bson.M{"createdAt": time.Now()}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc.toMistake(), nil
}

func (s *MongoMistakeStore) ListByUser(ctx context.Context, userID string) ([]*Mistake, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("bad user id: %w", err)
	}
	cur, err := s.coll.Find(ctx, bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Mistake
	for cur.Next(ctx) {
		var doc mistakeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMistake())
	}
	return out, cur.Err()
}

func (s *MongoMistakeStore) Remove(ctx context.Context, userID string, questionIDs []string) (int64, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, fmt.Errorf("bad user id: %w", err)
	}
	qids := make([]primitive.ObjectID, 0, len(questionIDs))
	for _, id := range questionIDs {
		if qid, err := primitive.ObjectIDFromHex(id); err == nil {
			qids = append(qids, qid)
		}
	}
	if len(qids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{
		"userId":     uid,
		"questionId": bson.M{"$in": qids},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ---------- SETTINGS STORE ----------

type MongoSettingsStore struct {
	coll *mongo.Collection
}

func NewMongoSettingsStore(cli *mongo.Client, db, coll string) *MongoSettingsStore {
	return &MongoSettingsStore{coll: cli.Database(db).Collection(coll)}
}

type settingsDoc struct {
	AllowNewRegistrations bool      `bson:"allowNewRegistrations"`
	UpdatedAt             time.Time `bson:"updatedAt"`
}

func (s *MongoSettingsStore) Get(ctx context.Context) (*Settings, error) {
	var doc settingsDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{},
		bson.M{"$setOnInsert": bson.M{
			"allowNewRegistrations": true,
			"updatedAt":             time.Now(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &Settings{AllowNewRegistrations: doc.AllowNewRegistrations, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *MongoSettingsStore) Update(ctx context.Context, allow bool) (*Settings, error) {
	var doc settingsDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{},
		bson.M{"$set": bson.M{
			"allowNewRegistrations": allow,
			"updatedAt":             time.Now(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &Settings{AllowNewRegistrations: doc.AllowNewRegistrations, UpdatedAt: doc.UpdatedAt}, nil
}
