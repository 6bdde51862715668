package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

// Field names the record attribute a query matched on.
type Field string

const (
	FieldID        Field = "id"
	FieldName      Field = "name"
	FieldEmail     Field = "email"
	FieldCompany   Field = "company"
	FieldColleague Field = "colleague"
)

// Record is a candidate fetched from a backend. For company records Name is
// the company name and Company is empty.
type Record struct {
	ID        string
	Kind      contractx.EntityType
	Name      string
	Email     string
	Company   string
	CompanyID string
	Phone     string
	Title     string
}

// Match is a scored candidate.
type Match struct {
	Record Record
	Field  Field
	Text   string
	Score  float64
}

// Thresholds are the minimum scores per matched field.
type Thresholds struct {
	Name    float64
	Email   float64
	Company float64
}

var (
	ResolveThresholds = Thresholds{Name: 70, Email: 80, Company: 70}
	SearchThresholds  = Thresholds{Name: 70, Email: 75, Company: 70}
)

// Source returns a bounded page of candidate records of one kind.
type Source interface {
	Candidates(ctx context.Context, kind contractx.EntityType) ([]Record, error)
}

type SourceFunc func(ctx context.Context, kind contractx.EntityType) ([]Record, error)

func (f SourceFunc) Candidates(ctx context.Context, kind contractx.EntityType) ([]Record, error) {
	return f(ctx, kind)
}

type Option func(*Resolver)

// WithIDMatcher adds a backend-specific ID recognizer. Targets matching
// either it or LooksLikeID skip the lookup.
func WithIDMatcher(fn func(string) bool) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.isID = fn
		}
	}
}

func WithThresholds(t Thresholds) Option {
	return func(r *Resolver) { r.thresholds = t }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// Resolver turns loose references into record IDs.
type Resolver struct {
	source     Source
	isID       func(string) bool
	thresholds Thresholds
	logger     zerolog.Logger
}

func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:     source,
		isID:       func(string) bool { return false },
		thresholds: ResolveThresholds,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsID reports whether target would be returned without a lookup.
func (r *Resolver) IsID(target string) bool {
	target = strings.TrimSpace(target)
	return LooksLikeID(target) || r.isID(target)
}

// Resolve returns the best match for target among records of kind. A miss
// is reported as contract.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, target string, kind contractx.EntityType) (Match, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Match{}, fmt.Errorf("%w: empty %s reference", contractx.ErrNotFound, kind)
	}
	if r.IsID(target) {
		return Match{Record: Record{ID: target, Kind: kind}, Field: FieldID, Text: target, Score: 100}, nil
	}

	records, err := r.source.Candidates(ctx, kind)
	if err != nil {
		return Match{}, err
	}

	best, ok := Best(target, records, r.thresholds)
	if !ok {
		r.logger.Debug().
			Str("target", target).
			Str("kind", string(kind)).
			Int("candidates", len(records)).
			Msg("no candidate above threshold")
		return Match{}, fmt.Errorf("%w: no %s matches %q", contractx.ErrNotFound, kind, target)
	}

	r.logger.Debug().
		Str("target", target).
		Str("kind", string(kind)).
		Str("matched", best.Text).
		Str("field", string(best.Field)).
		Float64("score", best.Score).
		Str("id", best.Record.ID).
		Msg("target resolved")
	return best, nil
}

// Best picks the highest scoring record. Email targets are matched against
// Email only, everything else against Name and Company. Ties keep the
// first-seen record.
func Best(target string, records []Record, t Thresholds) (Match, bool) {
	var (
		best  Match
		found bool
	)
	consider := func(rec Record, field Field, text string, threshold float64) {
		if text == "" {
			return
		}
		s := Score(target, text)
		if s < threshold {
			return
		}
		if !found || s > best.Score {
			best = Match{Record: rec, Field: field, Text: text, Score: s}
			found = true
		}
	}

	email := isEmail(target)
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if email {
			consider(rec, FieldEmail, rec.Email, t.Email)
			continue
		}
		threshold := t.Name
		if rec.Kind == contractx.EntityCompany {
			threshold = t.Company
		}
		consider(rec, FieldName, rec.Name, threshold)
		consider(rec, FieldCompany, rec.Company, t.Company)
	}
	return best, found
}
