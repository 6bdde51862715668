package zoho

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/resolve"
	"github.com/tanpawarit/chative-crm/crm/transport"
)

const System = "zoho"

type Option func(*Adapter)

func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

func WithMapping(m *fieldmap.Mapping) Option {
	return func(a *Adapter) {
		if m != nil {
			a.mapping = m
		}
	}
}

// WithTokenManager shares an existing token manager instead of building one
// from Config.
func WithTokenManager(tm *TokenManager) Option {
	return func(a *Adapter) { a.tokens = tm }
}

// Adapter talks to Zoho CRM v8. Zoho has a single Leads module, so person
// and company references both resolve to leads.
type Adapter struct {
	cfg        Config
	client     *transport.Client
	tokens     *TokenManager
	mapping    *fieldmap.Mapping
	resolver   *resolve.Resolver
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ contractx.Adapter = (*Adapter)(nil)

func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg = cfg.withDefaults()
	a := &Adapter{cfg: cfg, logger: log.Logger}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.logger = a.logger.With().Str("crm", System).Logger()

	if a.tokens == nil {
		tm, err := NewTokenManager(cfg, WithTokenHTTPClient(a.httpClient), WithTokenLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.tokens = tm
	}
	if a.mapping == nil {
		m, err := fieldmap.Load(System)
		if err != nil {
			return nil, err
		}
		a.mapping = m
	}

	client, err := transport.New(strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")+"/crm/v8", cfg.Timeout,
		transport.WithAuthorizer(a.tokens.Authorize),
		transport.WithHTTPClient(a.httpClient),
		transport.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.resolver = resolve.New(resolve.SourceFunc(a.candidates),
		resolve.WithIDMatcher(IsLeadID),
		resolve.WithLogger(a.logger),
	)
	return a, nil
}

// IsLeadID recognizes Zoho record ids, which are all digits and at least
// 16 long.
func IsLeadID(s string) bool {
	if len(s) < 16 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (a *Adapter) System() string { return System }

func (a *Adapter) Mapping() *fieldmap.Mapping { return a.mapping }

func (a *Adapter) candidates(ctx context.Context, _ contractx.EntityType) ([]resolve.Record, error) {
	return a.listLeads(ctx, a.cfg.ResolveLimit)
}

// listLeads reads one page of leads. Zoho answers 204 with no body when the
// module is empty.
func (a *Adapter) listLeads(ctx context.Context, limit int) ([]resolve.Record, error) {
	var resp envelope[lead]
	query := url.Values{"per_page": {strconv.Itoa(limit)}, "fields": {leadFields}}
	if err := a.client.JSON(ctx, http.MethodGet, moduleLeads, query, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]resolve.Record, 0, len(resp.Data))
	for _, l := range resp.Data {
		out = append(out, l.record())
	}
	return out, nil
}

func (a *Adapter) Search(ctx context.Context, query string) contractx.Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return contractx.Invalid("Search query is empty", nil)
	}

	leads, err := a.listLeads(ctx, a.cfg.SearchLimit)
	if err != nil {
		return contractx.Failure(err, "Search failed")
	}

	hits := resolve.Rank(query, nil, leads, resolve.SearchThresholds)
	if len(hits) == 0 {
		return contractx.NoMatches(query)
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		parts := []string{"👤 " + h.Record.Name}
		if h.Record.Title != "" {
			parts = append(parts, "("+h.Record.Title+")")
		}
		if h.Record.Company != "" {
			parts = append(parts, "@ "+h.Record.Company)
		}
		if h.Record.Email != "" {
			parts = append(parts, "<"+h.Record.Email+">")
		}
		if h.Record.Phone != "" {
			parts = append(parts, "📞 "+h.Record.Phone)
		}
		lines = append(lines, fmt.Sprintf("%s%s (ID: %s)", strings.Join(parts, " "), h.Label(), h.Record.ID))
	}
	return contractx.Success(fmt.Sprintf("Found %d lead(s)", len(hits)), "").WithLines(lines...)
}

type contactRules struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Company   string `json:"company" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// CreateContact creates a lead. Zoho requires last name and company on top
// of first name and email; missing fields are rejected before any request.
func (a *Adapter) CreateContact(ctx context.Context, in contractx.ContactInput) contractx.Result {
	in = in.Trimmed()
	rules := contactRules{FirstName: in.FirstName, LastName: in.LastName, Company: in.Company, Email: in.Email}
	if err := contractx.CheckInput(rules); err != nil {
		return contractx.Invalid(fmt.Sprintf("Lead not created: %v", err), err)
	}

	payload := envelope[leadPayload]{Data: []leadPayload{{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Company:    in.Company,
		Email:      in.Email,
		LeadSource: a.cfg.LeadSource,
		Phone:      in.Phone,
	}}}

	id, err := a.write(ctx, http.MethodPost, moduleLeads, payload)
	if err != nil {
		return contractx.Failure(err, fmt.Sprintf("Lead not created: %s", remoteMessage(err)))
	}
	return contractx.Success(fmt.Sprintf("Lead created: %s @ %s", in.FullName(), in.Company), id)
}

// CreateTask links the task to a lead through What_Id and $se_module. An
// unresolved target still creates the task, unlinked.
func (a *Adapter) CreateTask(ctx context.Context, in contractx.TaskInput) contractx.Result {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return contractx.Invalid("Task not created: title is required", nil)
	}
	target := strings.TrimSpace(in.Target)

	task := taskPayload{
		Subject:     title,
		Status:      "Not Started",
		Priority:    "Normal",
		Description: strings.TrimSpace(in.Body),
		DueDate:     strings.TrimSpace(in.DueDate),
	}

	var (
		match      resolve.Match
		resolveErr error
	)
	if target != "" {
		match, resolveErr = a.resolver.Resolve(ctx, target, contractx.EntityLead)
		if resolveErr == nil {
			task.WhatID = match.Record.ID
			task.SeModule = moduleLeads
		}
	}

	id, err := a.write(ctx, http.MethodPost, moduleTasks, envelope[taskPayload]{Data: []taskPayload{task}})
	if err != nil {
		return contractx.Failure(err, fmt.Sprintf("Task '%s' not created: %s", title, remoteMessage(err)))
	}

	res := contractx.Success(fmt.Sprintf("Task '%s' created", title), id)
	switch {
	case target == "":
	case resolveErr != nil:
		res = res.WithWarning(notLinked(target, resolveErr))
	default:
		res.Message += fmt.Sprintf(", linked to %s", linkLabel(match))
	}
	return res
}

// CreateNote attaches a note to a lead through a nested Parent_Id. Notes
// without a resolvable lead are not created.
func (a *Adapter) CreateNote(ctx context.Context, in contractx.NoteInput) contractx.Result {
	content := strings.TrimSpace(in.Content)
	target := strings.TrimSpace(in.Target)
	if content == "" {
		return contractx.Invalid("Note not created: content is required", nil)
	}
	if target == "" {
		return contractx.Invalid("Note not created: target is required", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = truncate(content, 50)
	}

	match, err := a.resolver.Resolve(ctx, target, contractx.EntityLead)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("Note not created: lead '%s' not found", target))
		}
		return contractx.Failure(err, fmt.Sprintf("Note not created: lookup of '%s' failed", target))
	}

	note := notePayload{
		ParentID:    parentRef{Module: moduleRef{APIName: moduleLeads}, ID: match.Record.ID},
		NoteTitle:   title,
		NoteContent: content,
	}
	id, err := a.write(ctx, http.MethodPost, moduleNotes, envelope[notePayload]{Data: []notePayload{note}})
	if err != nil {
		return contractx.Failure(err, fmt.Sprintf("Note '%s' not created: %s", title, remoteMessage(err)))
	}
	return contractx.Success(fmt.Sprintf("Note '%s' created, linked to %s", title, linkLabel(match)), id)
}

// UpdateEntity always updates a lead; person and company are accepted as
// aliases.
func (a *Adapter) UpdateEntity(ctx context.Context, target string, entityType contractx.EntityType, fields map[string]any) contractx.Result {
	switch contractx.ParseEntityType(string(entityType)) {
	case contractx.EntityLead, contractx.EntityPerson, contractx.EntityCompany, "contact":
	default:
		return contractx.Invalid(fmt.Sprintf("Unsupported entity type '%s' (use lead)", entityType), nil)
	}
	if contractx.ParseEntityType(string(entityType)) != contractx.EntityLead {
		a.logger.Debug().Str("entity", string(entityType)).Msg("entity remapped to lead")
	}
	target = strings.TrimSpace(target)
	if len(fields) == 0 {
		return contractx.Warning("No fields to update")
	}

	match, err := a.resolver.Resolve(ctx, target, contractx.EntityLead)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("Lead '%s' not found", target))
		}
		return contractx.Failure(err, fmt.Sprintf("Lookup of lead '%s' failed", target))
	}

	patch, applied, skipped := a.mapping.Apply(contractx.EntityLead, fields)
	for _, s := range skipped {
		a.logger.Debug().Str("field", s.Name).Str("reason", s.Reason).Msg("field skipped")
	}
	if len(patch) == 0 {
		res := contractx.Warning("No valid fields to update")
		res.Skipped = skipped
		return res
	}

	path := moduleLeads + "/" + url.PathEscape(match.Record.ID)
	if _, err := a.write(ctx, http.MethodPut, path, updatePayload(patch)); err != nil {
		return contractx.Failure(err, fmt.Sprintf("Lead '%s' not updated: %s", target, remoteMessage(err)))
	}

	res := contractx.Success("Lead updated", match.Record.ID)
	res.Applied = applied
	res.Skipped = skipped
	return res
}

var deleteModules = map[contractx.ItemType]string{
	contractx.ItemLead:    moduleLeads,
	contractx.ItemContact: moduleLeads,
	contractx.ItemPerson:  moduleLeads,
	contractx.ItemCompany: moduleLeads,
	contractx.ItemTask:    moduleTasks,
	contractx.ItemNote:    moduleNotes,
}

func (a *Adapter) DeleteItem(ctx context.Context, itemType contractx.ItemType, id string) contractx.Result {
	module, ok := deleteModules[itemType]
	if !ok {
		return contractx.Invalid(fmt.Sprintf("Cannot delete unknown item type '%s'", itemType), nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Invalid("Cannot delete: id is empty", nil)
	}
	label := contractx.EntityType(itemType).Title()

	path := module + "/" + url.PathEscape(id)
	var resp envelope[writeResult]
	err := a.client.JSON(ctx, http.MethodDelete, path, nil, nil, &resp)
	switch {
	case transport.IsStatus(err, http.StatusNotFound):
		res := contractx.Warning(fmt.Sprintf("%s was already deleted", label))
		res.ID = id
		return res
	case err != nil:
		return contractx.Failure(err, fmt.Sprintf("%s not deleted", label))
	}

	// A 200 still carries a per-record code; anything but SUCCESS means
	// the record was not deleted.
	if len(resp.Data) > 0 {
		if _, err := resp.Data[0].id(); err != nil {
			a.logger.Warn().Str("path", path).Str("code", resp.Data[0].Code).Str("message", resp.Data[0].Message).Msg("zoho rejected delete")
			return contractx.Failure(err, fmt.Sprintf("%s not deleted: %s", label, remoteMessage(err)))
		}
	}
	return contractx.Success(fmt.Sprintf("%s deleted", label), id)
}

// write sends a data envelope and returns the id of the first record.
func (a *Adapter) write(ctx context.Context, method, path string, body any) (string, error) {
	var resp envelope[writeResult]
	if err := a.client.JSON(ctx, method, path, nil, body, &resp); err != nil {
		return "", err
	}
	first, err := firstResult(resp)
	if err != nil {
		return "", err
	}
	id, err := first.id()
	if err != nil {
		a.logger.Warn().Str("path", path).Str("code", first.Code).Str("message", first.Message).Msg("zoho rejected write")
		return "", err
	}
	return id, nil
}

// remoteMessage keeps the text after the sentinel prefix so Zoho's own
// message reaches the caller.
func remoteMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{contractx.ErrRemote, contractx.ErrAuth, contractx.ErrNetwork} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

func notLinked(target string, err error) string {
	if errors.Is(err, contractx.ErrNotFound) {
		return fmt.Sprintf("not linked: no lead matches '%s'", target)
	}
	return fmt.Sprintf("not linked: lookup of '%s' failed", target)
}

func linkLabel(m resolve.Match) string {
	if m.Field == resolve.FieldID {
		return m.Record.ID
	}
	return m.Text
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
