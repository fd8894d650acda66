package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"quiz-results-service/internal/domain"
)

// ParticipantStore is the bun-backed implementation of
// app.ParticipantStore for deployments on Postgres instead of Mongo.
type ParticipantStore struct {
	db    *bun.DB
	clock func() time.Time
}

func NewParticipantStore(db *bun.DB) *ParticipantStore {
	return &ParticipantStore{db: db, clock: time.Now}
}

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID              string          `bun:"id,pk"`
	Name            string          `bun:"name,notnull"`
	Email           string          `bun:"email,notnull"`
	Role            string          `bun:"role,notnull"`
	Phone           string          `bun:"phone,notnull"`
	ManagingCompany string          `bun:"managing_company,notnull"`
	State           string          `bun:"state,notnull"`
	City            string          `bun:"city,notnull"`
	Products        []string        `bun:"products,array"`
	Other           string          `bun:"other"`
	Answers         []domain.Answer `bun:"answers,type:jsonb"`
	Score           int             `bun:"score,notnull"`
	ElapsedSeconds  int             `bun:"elapsed_seconds,notnull"`
	RegisteredAt    time.Time       `bun:"registered_at,notnull"`
}

func (r participantRow) toRecord() domain.ParticipantRecord {
	answers := r.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return domain.ParticipantRecord{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Role:            r.Role,
		Phone:           r.Phone,
		ManagingCompany: r.ManagingCompany,
		State:           r.State,
		City:            r.City,
		Products:        r.Products,
		Other:           r.Other,
		Answers:         answers,
		Score:           r.Score,
		ElapsedSeconds:  r.ElapsedSeconds,
		RegisteredAt:    r.RegisteredAt,
	}
}

func (s *ParticipantStore) Create(ctx context.Context, rec *domain.ParticipantRecord) (string, error) {
	row := participantRow{
		ID:              uuid.NewString(),
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
	if row.Answers == nil {
		row.Answers = []domain.Answer{}
	}
	if row.RegisteredAt.IsZero() {
		row.RegisteredAt = s.clock()
	}

	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return "", domain.StoreError("insert participant", err)
	}
	rec.ID = row.ID
	rec.RegisteredAt = row.RegisteredAt
	return row.ID, nil
}

func (s *ParticipantStore) GetByID(ctx context.Context, id string) (domain.ParticipantRecord, error) {
	var row participantRow
	err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ParticipantRecord{}, domain.StoreError("get participant", err)
	}
	return row.toRecord(), nil
}

func (s *ParticipantStore) UpdateByID(ctx context.Context, id string, upd domain.ParticipantUpdate) (domain.ParticipantRecord, error) {
	q := s.db.NewUpdate().Model((*participantRow)(nil)).Where("id = ?", id)
	assigned := applyUpdate(q, upd)
	if !assigned {
		return s.GetByID(ctx, id)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.ParticipantRecord{}, domain.StoreError("update participant", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ParticipantRecord{}, domain.StoreError("update participant", err)
	}
	if affected == 0 {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func applyUpdate(q *bun.UpdateQuery, upd domain.ParticipantUpdate) bool {
	assigned := false
	set := func(expr string, value any) {
		q.Set(expr, value)
		assigned = true
	}
	if upd.Name != nil {
		set("name = ?", *upd.Name)
	}
	if upd.Email != nil {
		set("email = ?", *upd.Email)
	}
	if upd.Role != nil {
		set("role = ?", *upd.Role)
	}
	if upd.Phone != nil {
		set("phone = ?", *upd.Phone)
	}
	if upd.ManagingCompany != nil {
		set("managing_company = ?", *upd.ManagingCompany)
	}
	if upd.State != nil {
		set("state = ?", *upd.State)
	}
	if upd.City != nil {
		set("city = ?", *upd.City)
	}
	if upd.Products != nil {
		set("products = ?", pgdialect.Array(*upd.Products))
	}
	if upd.Other != nil {
		set("other = ?", *upd.Other)
	}
	if upd.Answers != nil {
		set("answers = ?::jsonb", jsonbValue(upd.Answers))
	}
	if upd.Score != nil {
		set("score = ?", *upd.Score)
	}
	if upd.ElapsedSeconds != nil {
		set("elapsed_seconds = ?", *upd.ElapsedSeconds)
	}
	if upd.RegisteredAt != nil {
		set("registered_at = ?", *upd.RegisteredAt)
	}
	return assigned
}

func jsonbValue(answers []domain.Answer) string {
	data, err := json.Marshal(answers)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.ParticipantRecord, error) {
	var rows []participantRow
	err := s.db.NewSelect().Model(&rows).Order("registered_at DESC").Scan(ctx)
	if err != nil {
		return nil, domain.StoreError("list participants", err)
	}
	records := make([]domain.ParticipantRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (s *ParticipantStore) ListRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	q := s.db.NewSelect().
		Model((*participantRow)(nil)).
		Column("name", "email", "score", "elapsed_seconds", "registered_at").
		Where("score > 0").
		Order("score DESC", "elapsed_seconds ASC")
	if limit > 0 {
		q.Limit(limit)
	}

	var rows []participantRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, domain.StoreError("list ranking", err)
	}
	entries := make([]domain.RankingEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.RankingEntry{
			Name:           row.Name,
			Email:          row.Email,
			Score:          row.Score,
			ElapsedSeconds: row.ElapsedSeconds,
			RegisteredAt:   row.RegisteredAt,
		})
	}
	return entries, nil
}

func (s *ParticipantStore) FindMostRecent(ctx context.Context, f domain.Filter) (*domain.ParticipantRecord, error) {
	q := s.db.NewSelect().Model((*participantRow)(nil)).Order("registered_at DESC").Limit(1)
	switch {
	case f.NameFold != "":
		q.Where("lower(name) = lower(?)", f.NameFold)
	case f.PhoneDigits != "":
		q.Where(`regexp_replace(phone, '\D', '', 'g') LIKE ?`, "%"+f.PhoneDigits+"%")
	case f.EmailExact != "":
		q.Where("email = ?", f.EmailExact)
	case f.RoleFold != "":
		q.Where("lower(role) = lower(?)", f.RoleFold)
	default:
		return nil, nil
	}

	var row participantRow
	err := q.Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreError("find participant", err)
	}
	rec := row.toRecord()
	return &rec, nil
}
