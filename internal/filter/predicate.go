package filter

import (
	"strings"
	"time"

	"github.com/iago/feed-agent-back/internal/domain"
)

type Equality struct {
	Field string
	Value string
}

// TimeRange is a closed interval; a nil bound is open.
type TimeRange struct {
	Field string
	From  *time.Time
	To    *time.Time
}

type Minimum struct {
	Field string
	Value int64
}

// Predicate is a backend-neutral description of which documents match.
// Stores translate it into their native query language.
type Predicate struct {
	Equals   []Equality
	Range    *TimeRange
	Minimums []Minimum
}

func (p Predicate) IsEmpty() bool {
	return len(p.Equals) == 0 && p.Range == nil && len(p.Minimums) == 0
}

// Unsatisfiable reports an inverted range. Such a predicate matches nothing.
func (p Predicate) Unsatisfiable() bool {
	return p.Range != nil && p.Range.From != nil && p.Range.To != nil && p.Range.From.After(*p.Range.To)
}

// Matches evaluates the predicate against a stored document in process.
func (p Predicate) Matches(fields map[string]any) bool {
	if p.Unsatisfiable() {
		return false
	}
	for _, equality := range p.Equals {
		value, ok := domain.Lookup(fields, equality.Field)
		if !ok || domain.AsString(value) != equality.Value {
			return false
		}
	}
	if p.Range != nil {
		value, ok := domain.Lookup(fields, p.Range.Field)
		if !ok {
			return false
		}
		timestamp, ok := domain.AsTime(value)
		if !ok {
			return false
		}
		if p.Range.From != nil && timestamp.Before(*p.Range.From) {
			return false
		}
		if p.Range.To != nil && timestamp.After(*p.Range.To) {
			return false
		}
	}
	for _, minimum := range p.Minimums {
		value, ok := domain.Lookup(fields, minimum.Field)
		if !ok {
			return false
		}
		number, ok := domain.AsInt64(value)
		if !ok || number < minimum.Value {
			return false
		}
	}
	return true
}

func (p Predicate) String() string {
	if p.IsEmpty() {
		return "match_all"
	}
	parts := make([]string, 0, len(p.Equals)+len(p.Minimums)+1)
	for _, equality := range p.Equals {
		parts = append(parts, equality.Field+"="+equality.Value)
	}
	if p.Range != nil {
		from, to := "-inf", "+inf"
		if p.Range.From != nil {
			from = p.Range.From.Format(time.RFC3339)
		}
		if p.Range.To != nil {
			to = p.Range.To.Format(time.RFC3339)
		}
		parts = append(parts, p.Range.Field+" in ["+from+", "+to+"]")
	}
	for _, minimum := range p.Minimums {
		parts = append(parts, minimum.Field+">="+formatInt(minimum.Value))
	}
	return strings.Join(parts, " AND ")
}
