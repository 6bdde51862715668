// Package tool exposes an Adapter to an LLM agent: a per-user toolkit that
// records undo context, the tool catalog, and the tool-call executor.
package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/undo"
	"github.com/tanpawarit/chative-crm/crm/zoho"
)

type Option func(*Toolkit)

// WithAttribution appends "via <name>" to task bodies and note content.
func WithAttribution(name string) Option {
	return func(t *Toolkit) { t.attribution = strings.TrimSpace(name) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Toolkit) { t.logger = logger }
}

// Toolkit binds an Adapter and an undo store to one user. It is cheap to
// build per request.
type Toolkit struct {
	adapter     contractx.Adapter
	store       undo.Store
	userID      string
	attribution string
	logger      zerolog.Logger
}

func NewToolkit(adapter contractx.Adapter, store undo.Store, userID string, opts ...Option) *Toolkit {
	t := &Toolkit{
		adapter: adapter,
		store:   store,
		userID:  strings.TrimSpace(userID),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.logger = t.logger.With().Str("crm", adapter.System()).Str("user_id", t.userID).Logger()
	return t
}

func (t *Toolkit) Adapter() contractx.Adapter { return t.adapter }

// Mapping returns the adapter's field mapping, falling back to the
// embedded file for its system.
func (t *Toolkit) Mapping() (*fieldmap.Mapping, error) {
	if m, ok := t.adapter.(interface{ Mapping() *fieldmap.Mapping }); ok && m.Mapping() != nil {
		return m.Mapping(), nil
	}
	return fieldmap.Load(t.adapter.System())
}

func (t *Toolkit) Search(ctx context.Context, query string) contractx.Result {
	return t.adapter.Search(ctx, query)
}

func (t *Toolkit) CreateContact(ctx context.Context, in contractx.ContactInput) contractx.Result {
	res := t.adapter.CreateContact(ctx, in)
	t.remember(ctx, t.contactItem(), res)
	return res
}

func (t *Toolkit) CreateTask(ctx context.Context, in contractx.TaskInput) contractx.Result {
	in.Body = t.attribute(in.Body)
	res := t.adapter.CreateTask(ctx, in)
	t.remember(ctx, contractx.ItemTask, res)
	return res
}

func (t *Toolkit) CreateNote(ctx context.Context, in contractx.NoteInput) contractx.Result {
	in.Content = t.attribute(in.Content)
	res := t.adapter.CreateNote(ctx, in)
	t.remember(ctx, contractx.ItemNote, res)
	return res
}

func (t *Toolkit) UpdateEntity(ctx context.Context, target string, entityType contractx.EntityType, fields map[string]any) contractx.Result {
	return t.adapter.UpdateEntity(ctx, target, entityType, fields)
}

func (t *Toolkit) GetDetails(ctx context.Context, ref string) contractx.Result {
	return t.adapter.GetDetails(ctx, ref)
}

// Undo deletes the user's last created record. The entry is cleared when
// the record is gone, including when it was already deleted.
func (t *Toolkit) Undo(ctx context.Context) contractx.Result {
	entry, err := t.store.Load(ctx, t.userID)
	switch {
	case errors.Is(err, undo.ErrNotFound):
		return contractx.Warning("Nothing to undo")
	case err != nil:
		t.logger.Error().Err(err).Msg("undo lookup failed")
		return contractx.Failure(err, "Undo failed: last action unavailable")
	}

	res := t.adapter.DeleteItem(ctx, entry.EntityType, entry.EntityID)
	if res.Outcome == contractx.OutcomeSuccess || res.Outcome == contractx.OutcomeWarning {
		if err := t.store.Clear(ctx, t.userID); err != nil {
			t.logger.Warn().Err(err).Msg("undo entry not cleared")
		}
	}
	t.logger.Info().
		Str("entity_type", string(entry.EntityType)).
		Str("entity_id", entry.EntityID).
		Str("outcome", res.Outcome.String()).
		Msg("undo")
	return res
}

func (t *Toolkit) remember(ctx context.Context, item contractx.ItemType, res contractx.Result) {
	if !res.OK() || res.ID == "" {
		return
	}
	err := t.store.Save(ctx, undo.Entry{
		UserID:     t.userID,
		EntityType: item,
		EntityID:   res.ID,
		Action:     undo.ActionCreate,
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("entity_id", res.ID).Msg("undo entry not saved")
	}
}

// contactItem is the record kind CreateContact produces on this backend.
func (t *Toolkit) contactItem() contractx.ItemType {
	if t.adapter.System() == zoho.System {
		return contractx.ItemLead
	}
	return contractx.ItemPerson
}

func (t *Toolkit) attribute(text string) string {
	if t.attribution == "" || strings.TrimSpace(text) == "" {
		return text
	}
	return text + "\n\n---\n_via " + t.attribution + "_"
}
