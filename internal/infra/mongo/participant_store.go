package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-results-service/internal/domain"
)

// ParticipantStore persists participant records in a Mongo collection,
// the system's primary document store.
type ParticipantStore struct {
	coll  *mongo.Collection
	clock func() time.Time
}

func NewParticipantStore(coll *mongo.Collection) *ParticipantStore {
	return &ParticipantStore{coll: coll, clock: time.Now}
}

// participantDoc mirrors domain.ParticipantRecord with a native ObjectID.
type participantDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Email           string             `bson:"email"`
	Role            string             `bson:"role"`
	Phone           string             `bson:"phone"`
	ManagingCompany string             `bson:"managingCompany"`
	State           string             `bson:"state"`
	City            string             `bson:"city"`
	Products        []string           `bson:"products,omitempty"`
	Other           string             `bson:"other,omitempty"`
	Answers         []domain.Answer    `bson:"answers"`
	Score           int                `bson:"score"`
	ElapsedSeconds  int                `bson:"elapsedSeconds"`
	RegisteredAt    time.Time          `bson:"registeredAt"`
}

func (d participantDoc) toRecord() domain.ParticipantRecord {
	answers := d.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return domain.ParticipantRecord{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		Role:            d.Role,
		Phone:           d.Phone,
		ManagingCompany: d.ManagingCompany,
		State:           d.State,
		City:            d.City,
		Products:        d.Products,
		Other:           d.Other,
		Answers:         answers,
		Score:           d.Score,
		ElapsedSeconds:  d.ElapsedSeconds,
		RegisteredAt:    d.RegisteredAt,
	}
}

// EnsureIndexes creates the ranking and listing indexes. Called once at
// startup; safe to re-run.
func (s *ParticipantStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "registeredAt", Value: -1}}},
		{Keys: bson.D{{Key: "score", Value: -1}, {Key: "elapsedSeconds", Value: 1}}},
	})
	if err != nil {
		return domain.StoreError("ensure indexes", err)
	}
	return nil
}

func (s *ParticipantStore) Create(ctx context.Context, rec *domain.ParticipantRecord) (string, error) {
	doc := participantDoc{
		Name:            rec.Name,
		Email:           rec.Email,
		Role:            rec.Role,
		Phone:           rec.Phone,
		ManagingCompany: rec.ManagingCompany,
		State:           rec.State,
		City:            rec.City,
		Products:        rec.Products,
		Other:           rec.Other,
		Answers:         rec.Answers,
		Score:           rec.Score,
		ElapsedSeconds:  rec.ElapsedSeconds,
		RegisteredAt:    rec.RegisteredAt,
	}
	if doc.Answers == nil {
		doc.Answers = []domain.Answer{}
	}
	if doc.RegisteredAt.IsZero() {
		doc.RegisteredAt = s.clock()
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", domain.StoreError("insert participant", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", domain.StoreError("insert participant", errors.New("unexpected inserted id type"))
	}
	rec.ID = oid.Hex()
	rec.RegisteredAt = doc.RegisteredAt
	return rec.ID, nil
}

func (s *ParticipantStore) GetByID(ctx context.Context, id string) (domain.ParticipantRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	var doc participantDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ParticipantRecord{}, domain.StoreError("get participant", err)
	}
	return doc.toRecord(), nil
}

func (s *ParticipantStore) UpdateByID(ctx context.Context, id string, upd domain.ParticipantUpdate) (domain.ParticipantRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}

	set := updateSet(upd)
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc participantDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ParticipantRecord{}, domain.StoreError("update participant", err)
	}
	return doc.toRecord(), nil
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.ParticipantRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registeredAt", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, domain.StoreError("list participants", err)
	}
	defer cur.Close(ctx)

	records := make([]domain.ParticipantRecord, 0)
	for cur.Next(ctx) {
		var doc participantDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, domain.StoreError("decode participant", err)
		}
		records = append(records, doc.toRecord())
	}
	if err := cur.Err(); err != nil {
		return nil, domain.StoreError("list participants", err)
	}
	return records, nil
}

func (s *ParticipantStore) ListRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "elapsedSeconds", Value: 1}}).
		SetProjection(bson.M{
			"_id":            0,
			"name":           1,
			"email":          1,
			"score":          1,
			"elapsedSeconds": 1,
			"registeredAt":   1,
		})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.M{"score": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, domain.StoreError("list ranking", err)
	}
	defer cur.Close(ctx)

	entries := make([]domain.RankingEntry, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, domain.StoreError("decode ranking", err)
	}
	return entries, nil
}

func (s *ParticipantStore) FindMostRecent(ctx context.Context, f domain.Filter) (*domain.ParticipantRecord, error) {
	predicate := filterQuery(f)
	if predicate == nil {
		return nil, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "registeredAt", Value: -1}})
	var doc participantDoc
	err := s.coll.FindOne(ctx, predicate, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreError("find participant", err)
	}
	rec := doc.toRecord()
	return &rec, nil
}

func updateSet(upd domain.ParticipantUpdate) bson.M {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Role != nil {
		set["role"] = *upd.Role
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.ManagingCompany != nil {
		set["managingCompany"] = *upd.ManagingCompany
	}
	if upd.State != nil {
		set["state"] = *upd.State
	}
	if upd.City != nil {
		set["city"] = *upd.City
	}
	if upd.Products != nil {
		set["products"] = *upd.Products
	}
	if upd.Other != nil {
		set["other"] = *upd.Other
	}
	if upd.Answers != nil {
		set["answers"] = upd.Answers
	}
	if upd.Score != nil {
		set["score"] = *upd.Score
	}
	if upd.ElapsedSeconds != nil {
		set["elapsedSeconds"] = *upd.ElapsedSeconds
	}
	if upd.RegisteredAt != nil {
		set["registeredAt"] = *upd.RegisteredAt
	}
	return set
}

func filterQuery(f domain.Filter) bson.M {
	switch {
	case f.NameFold != "":
		return bson.M{"name": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(f.NameFold) + "$",
			Options: "i",
		}}
	case f.PhoneDigits != "":
		return bson.M{"phone": primitive.Regex{Pattern: digitsPattern(f.PhoneDigits)}}
	case f.EmailExact != "":
		return bson.M{"email": f.EmailExact}
	case f.RoleFold != "":
		return bson.M{"role": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(f.RoleFold) + "$",
			Options: "i",
		}}
	}
	return nil
}

// digitsPattern matches the digit sequence regardless of stored formatting:
// "5551234567" becomes 5\D*5\D*5\D*1... so "+1 (555) 123-4567" matches.
func digitsPattern(digits string) string {
	parts := strings.Split(digits, "")
	return strings.Join(parts, `\D*`)
}
