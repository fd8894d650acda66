package domain

import "time"

// ParticipantRecord is the single persisted entity: one quiz participant
// with their registration data, answers, and score.
type ParticipantRecord struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	Name            string    `json:"name" bson:"name"`
	Email           string    `json:"email" bson:"email"`
	Role            string    `json:"role" bson:"role"`
	Phone           string    `json:"phone" bson:"phone"`
	ManagingCompany string    `json:"managingCompany" bson:"managingCompany"`
	State           string    `json:"state" bson:"state"`
	City            string    `json:"city" bson:"city"`
	Products        []string  `json:"products,omitempty" bson:"products,omitempty"`
	Other           string    `json:"other,omitempty" bson:"other,omitempty"`
	Answers         []Answer  `json:"answers" bson:"answers"`
	Score           int       `json:"score" bson:"score"`
	ElapsedSeconds  int       `json:"elapsedSeconds" bson:"elapsedSeconds"`
	RegisteredAt    time.Time `json:"registeredAt" bson:"registeredAt"`
}

// Answer captures one attempted quiz question.
type Answer struct {
	Question string `json:"question" bson:"question"`
	Answer   string `json:"answer" bson:"answer"`
	Correct  bool   `json:"isCorrect" bson:"isCorrect"`
}

// RankingEntry is the projected leaderboard view of a record. IDs and raw
// answers are deliberately left out of the ranking payload.
type RankingEntry struct {
	Name           string    `json:"name" bson:"name"`
	Email          string    `json:"email" bson:"email"`
	Score          int       `json:"score" bson:"score"`
	ElapsedSeconds int       `json:"elapsedSeconds" bson:"elapsedSeconds"`
	RegisteredAt   time.Time `json:"registeredAt" bson:"registeredAt"`
}

// Filter selects participants by exactly one normalized field predicate.
// Stores interpret the populated field; zero-value fields are ignored.
type Filter struct {
	// NameFold matches the full stored name, case-insensitively. The input
	// is already whitespace-trimmed.
	NameFold string
	// PhoneDigits matches when the stored phone, reduced to digits, contains
	// this digit sequence as a substring. Unanchored on purpose: it tolerates
	// formatting and country-code differences, at the cost of possible false
	// positives on short numbers.
	PhoneDigits string
	// EmailExact matches the stored email exactly. The input is already
	// lower-cased and trimmed.
	EmailExact string
	// RoleFold matches the full stored role, case-insensitively.
	RoleFold string
}

// IsZero reports whether no predicate field is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// ParticipantUpdate carries a partial update. Nil pointers (and a nil
// Answers slice) leave the stored value untouched.
type ParticipantUpdate struct {
	Name            *string
	Email           *string
	Role            *string
	Phone           *string
	ManagingCompany *string
	State           *string
	City            *string
	Products        *[]string
	Other           *string
	Answers         []Answer
	Score           *int
	ElapsedSeconds  *int
	RegisteredAt    *time.Time
}

// Apply merges the update into rec, mirroring a document-store $set.
func (u ParticipantUpdate) Apply(rec *ParticipantRecord) {
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Email != nil {
		rec.Email = *u.Email
	}
	if u.Role != nil {
		rec.Role = *u.Role
	}
	if u.Phone != nil {
		rec.Phone = *u.Phone
	}
	if u.ManagingCompany != nil {
		rec.ManagingCompany = *u.ManagingCompany
	}
	if u.State != nil {
		rec.State = *u.State
	}
	if u.City != nil {
		rec.City = *u.City
	}
	if u.Products != nil {
		rec.Products = *u.Products
	}
	if u.Other != nil {
		rec.Other = *u.Other
	}
	if u.Answers != nil {
		rec.Answers = u.Answers
	}
	if u.Score != nil {
		rec.Score = *u.Score
	}
	if u.ElapsedSeconds != nil {
		rec.ElapsedSeconds = *u.ElapsedSeconds
	}
	if u.RegisteredAt != nil {
		rec.RegisteredAt = *u.RegisteredAt
	}
}

// RankingView projects a record into its leaderboard shape.
func (r ParticipantRecord) RankingView() RankingEntry {
	return RankingEntry{
		Name:           r.Name,
		Email:          r.Email,
		Score:          r.Score,
		ElapsedSeconds: r.ElapsedSeconds,
		RegisteredAt:   r.RegisteredAt,
	}
}
