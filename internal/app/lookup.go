package app

import (
	"context"
	"strings"

	"quiz-results-service/internal/domain"
)

// LookupQuery carries the partial contact data used to recognize a
// returning participant. Any subset of fields may be set.
type LookupQuery struct {
	Name  string
	Phone string
	Email string
	Role  string
}

// lookupStrategy builds a single-field store filter from a query. build
// returns ok=false when the query does not carry the field.
type lookupStrategy struct {
	name  string
	build func(q LookupQuery) (domain.Filter, bool)
}

// lookupStrategies is evaluated in priority order, most identity-stable
// field first. Evaluation stops at the first strategy whose lookup hits.
var lookupStrategies = []lookupStrategy{
	{
		name: "name",
		build: func(q LookupQuery) (domain.Filter, bool) {
			n := strings.TrimSpace(q.Name)
			if n == "" {
				return domain.Filter{}, false
			}
			return domain.Filter{NameFold: n}, true
		},
	},
	{
		name: "phone",
		build: func(q LookupQuery) (domain.Filter, bool) {
			d := digitsOnly(q.Phone)
			if d == "" {
				return domain.Filter{}, false
			}
			return domain.Filter{PhoneDigits: d}, true
		},
	},
	{
		name: "email",
		build: func(q LookupQuery) (domain.Filter, bool) {
			e := strings.ToLower(strings.TrimSpace(q.Email))
			if e == "" {
				return domain.Filter{}, false
			}
			return domain.Filter{EmailExact: e}, true
		},
	},
	{
		name: "role",
		build: func(q LookupQuery) (domain.Filter, bool) {
			r := strings.TrimSpace(q.Role)
			if r == "" {
				return domain.Filter{}, false
			}
			return domain.Filter{RoleFold: r}, true
		},
	},
}

// FindExisting runs the sequential fallback search for a returning
// participant: name, then phone, then email, then role. Each strategy is a
// separate store lookup, not a combined predicate; among matches the most
// recently registered record wins. A nil record with a nil error means "no
// match" and callers should treat the participant as new.
func (s *ParticipantService) FindExisting(ctx context.Context, q LookupQuery) (*domain.ParticipantRecord, error) {
	for _, strat := range lookupStrategies {
		filter, ok := strat.build(q)
		if !ok {
			continue
		}
		rec, err := s.store.FindMostRecent(ctx, filter)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// digitsOnly strips everything but ASCII digits, so "+1 (555) 123-4567"
// and "5551234567" compare equal.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
