package twenty

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
	"github.com/tidwall/gjson"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/resolve"
	"github.com/tanpawarit/chative-crm/crm/transport"
)

const System = "twenty"

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

// Adapter talks to the Twenty REST API with a static API key.
type Adapter struct {
	cfg        Config
	client     *transport.Client
	mapping    *fieldmap.Mapping
	resolver   *resolve.Resolver
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ contractx.Adapter = (*Adapter)(nil)

func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg = cfg.withDefaults()
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: twenty api key is required", contractx.ErrConfig)
	}

	a := &Adapter{cfg: cfg, logger: log.Logger}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.logger = a.logger.With().Str("crm", System).Logger()

	if a.mapping == nil {
		m, err := fieldmap.Load(System)
		if err != nil {
			return nil, err
		}
		a.mapping = m
	}

	client, err := transport.New(restURL(cfg.APIURL), cfg.Timeout,
		transport.WithAuthorizer(transport.Bearer(key)),
		transport.WithHTTPClient(a.httpClient),
		transport.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.resolver = resolve.New(resolve.SourceFunc(a.candidates), resolve.WithLogger(a.logger))
	return a, nil
}

// restURL accepts a bare host and appends the /rest prefix.
func restURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if !strings.HasSuffix(base, "/rest") {
		base += "/rest"
	}
	return base
}

func (a *Adapter) System() string { return System }

func (a *Adapter) Mapping() *fieldmap.Mapping { return a.mapping }

func (a *Adapter) candidates(ctx context.Context, kind contractx.EntityType) ([]resolve.Record, error) {
	if kind == contractx.EntityCompany {
		return a.listCompanies(ctx, a.cfg.ResolveCompanyLimit)
	}
	return a.listPeople(ctx, a.cfg.ResolvePersonLimit)
}

func (a *Adapter) listPeople(ctx context.Context, limit int) ([]resolve.Record, error) {
	raw, err := a.client.Do(ctx, http.MethodGet, "people", url.Values{"limit": {strconv.Itoa(limit)}}, nil)
	if err != nil {
		return nil, err
	}
	var out []resolve.Record
	lookup(raw, "people").ForEach(func(_, p gjson.Result) bool {
		out = append(out, personRecord(p))
		return true
	})
	return out, nil
}

func (a *Adapter) listCompanies(ctx context.Context, limit int) ([]resolve.Record, error) {
	raw, err := a.client.Do(ctx, http.MethodGet, "companies", url.Values{"limit": {strconv.Itoa(limit)}}, nil)
	if err != nil {
		return nil, err
	}
	var out []resolve.Record
	lookup(raw, "companies").ForEach(func(_, c gjson.Result) bool {
		out = append(out, companyRecord(c))
		return true
	})
	return out, nil
}

// Search lists matching companies and people, colleagues of matched
// companies included, best match first.
func (a *Adapter) Search(ctx context.Context, query string) contractx.Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return contractx.Invalid("Search query is empty", nil)
	}

	companies, err := a.listCompanies(ctx, a.cfg.SearchCompanyLimit)
	if err != nil {
		return contractx.Failure(err, "Search failed")
	}
	people, err := a.listPeople(ctx, a.cfg.SearchPersonLimit)
	if err != nil {
		return contractx.Failure(err, "Search failed")
	}

	hits := resolve.Rank(query, companies, people, resolve.SearchThresholds)
	if len(hits) == 0 {
		return contractx.NoMatches(query)
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		var line string
		switch {
		case h.Record.Kind == contractx.EntityCompany:
			line = fmt.Sprintf("🏢 COMPANY: %s", h.Record.Name)
		case h.Field == resolve.FieldColleague:
			line = fmt.Sprintf("👉 COLLEAGUE at %s: %s <%s>", h.Record.Company, h.Record.Name, h.Record.Email)
		default:
			line = fmt.Sprintf("👤 PERSON: %s <%s>", h.Record.Name, h.Record.Email)
		}
		lines = append(lines, fmt.Sprintf("%s%s (ID: %s)", line, h.Label(), h.Record.ID))
	}
	return contractx.Success(fmt.Sprintf("Found %d record(s)", len(hits)), "").WithLines(lines...)
}

type contactRules struct {
	FirstName string `json:"first_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

func (a *Adapter) CreateContact(ctx context.Context, in contractx.ContactInput) contractx.Result {
	in = in.Trimmed()
	if err := contractx.CheckInput(contactRules{FirstName: in.FirstName, Email: in.Email}); err != nil {
		return contractx.Invalid(fmt.Sprintf("Contact not created: %v", err), err)
	}

	payload := personPayload{
		Name:   personName{FirstName: in.FirstName, LastName: in.LastName},
		Emails: fieldmap.EmailsValue{PrimaryEmail: in.Email, AdditionalEmails: []string{}},
	}
	if in.Phone != "" {
		phones := fieldmap.ParsePhone(in.Phone)
		payload.Phones = &phones
	}

	var warnings []string
	if in.Company != "" {
		match, err := a.resolver.Resolve(ctx, in.Company, contractx.EntityCompany)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("company '%s' not linked", in.Company))
		} else {
			payload.CompanyID = match.Record.ID
		}
	}

	raw, err := a.client.Do(ctx, http.MethodPost, "people", nil, payload)
	if err != nil {
		return contractx.Failure(err, "Contact not created")
	}
	id := createdID(raw, "createPerson")
	if id == "" {
		return contractx.Failure(contractx.ErrRemote, "Contact not created: response carried no id")
	}

	res := contractx.Success(fmt.Sprintf("Contact created: %s", in.FullName()), id)
	for _, w := range warnings {
		res = res.WithWarning(w)
	}
	return res
}

// CreateTask creates the task first and links it in a second call. A
// target that cannot be resolved or linked leaves the task unlinked.
func (a *Adapter) CreateTask(ctx context.Context, in contractx.TaskInput) contractx.Result {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return contractx.Invalid("Task not created: title is required", nil)
	}
	target := strings.TrimSpace(in.Target)

	var (
		match      resolve.Match
		resolveErr error
	)
	if target != "" {
		match, resolveErr = a.resolver.Resolve(ctx, target, contractx.EntityPerson)
	}

	payload := taskPayload{Title: title, Status: "TODO", Position: 1, DueAt: strings.TrimSpace(in.DueDate)}
	if body := strings.TrimSpace(in.Body); body != "" {
		payload.BodyV2 = &richText{Markdown: body}
	}

	raw, err := a.client.Do(ctx, http.MethodPost, "tasks", nil, payload)
	if err != nil {
		return contractx.Failure(err, fmt.Sprintf("Task '%s' not created", title))
	}
	id := createdID(raw, "createTask")
	if id == "" {
		return contractx.Failure(contractx.ErrRemote, fmt.Sprintf("Task '%s' not created: response carried no id", title))
	}

	res := contractx.Success(fmt.Sprintf("Task '%s' created", title), id)
	switch {
	case target == "":
		return res
	case resolveErr != nil:
		return res.WithWarning(notLinked(target, resolveErr))
	}

	if _, err := a.client.Do(ctx, http.MethodPost, "taskTargets", nil, taskTarget{TaskID: id, PersonID: match.Record.ID}); err != nil {
		a.logger.Warn().Err(err).Str("task_id", id).Str("person_id", match.Record.ID).Msg("task link failed")
		return res.WithWarning(fmt.Sprintf("not linked to '%s': link request failed", target))
	}
	res.Message += fmt.Sprintf(", linked to %s", linkLabel(match))
	return res
}

// CreateNote refuses to create a note whose target cannot be resolved.
func (a *Adapter) CreateNote(ctx context.Context, in contractx.NoteInput) contractx.Result {
	content := strings.TrimSpace(in.Content)
	target := strings.TrimSpace(in.Target)
	if content == "" {
		return contractx.Invalid("Note not created: content is required", nil)
	}
	if target == "" {
		return contractx.Invalid("Note not created: target is required", nil)
	}
	title := noteTitle(in.Title, content)

	match, err := a.resolver.Resolve(ctx, target, contractx.EntityPerson)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("Note not created: target '%s' not found", target))
		}
		return contractx.Failure(err, fmt.Sprintf("Note not created: lookup of '%s' failed", target))
	}

	raw, err := a.client.Do(ctx, http.MethodPost, "notes", nil, notePayload{Title: title, BodyV2: richText{Markdown: content}})
	if err != nil {
		return contractx.Failure(err, fmt.Sprintf("Note '%s' not created", title))
	}
	id := createdID(raw, "createNote")
	if id == "" {
		return contractx.Failure(contractx.ErrRemote, fmt.Sprintf("Note '%s' not created: response carried no id", title))
	}

	res := contractx.Success(fmt.Sprintf("Note '%s' created", title), id)
	if _, err := a.client.Do(ctx, http.MethodPost, "noteTargets", nil, noteTarget{NoteID: id, PersonID: match.Record.ID}); err != nil {
		a.logger.Warn().Err(err).Str("note_id", id).Str("person_id", match.Record.ID).Msg("note link failed")
		return res.WithWarning(fmt.Sprintf("not linked to '%s': link request failed", target))
	}
	res.Message += fmt.Sprintf(", linked to %s", linkLabel(match))
	return res
}

func (a *Adapter) UpdateEntity(ctx context.Context, target string, entityType contractx.EntityType, fields map[string]any) contractx.Result {
	entity, ok := entityFor(entityType)
	if !ok {
		return contractx.Invalid(fmt.Sprintf("Unsupported entity type '%s' (use person or company)", entityType), nil)
	}
	target = strings.TrimSpace(target)
	if len(fields) == 0 {
		return contractx.Warning("No fields to update")
	}

	match, err := a.resolver.Resolve(ctx, target, entity)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("%s '%s' not found", entity.Title(), target))
		}
		return contractx.Failure(err, fmt.Sprintf("Lookup of %s '%s' failed", entity, target))
	}

	patch, applied, skipped := a.mapping.Apply(entity, fields)
	for _, s := range skipped {
		a.logger.Debug().Str("field", s.Name).Str("reason", s.Reason).Msg("field skipped")
	}
	if len(patch) == 0 {
		res := contractx.Warning("No valid fields to update")
		res.Skipped = skipped
		return res
	}

	path := a.mapping.Endpoint(entity) + "/" + url.PathEscape(match.Record.ID)
	if _, err := a.client.Do(ctx, http.MethodPatch, path, nil, patch); err != nil {
		return contractx.Failure(err, fmt.Sprintf("%s '%s' not updated", entity.Title(), target))
	}

	res := contractx.Success(fmt.Sprintf("%s updated", entity.Title()), match.Record.ID)
	res.Applied = applied
	res.Skipped = skipped
	return res
}

// DeleteItem removes a record. A 404 means the record is already gone and
// is reported as a warning.
func (a *Adapter) DeleteItem(ctx context.Context, itemType contractx.ItemType, id string) contractx.Result {
	endpoint, ok := deleteEndpoints[itemType]
	if !ok {
		return contractx.Invalid(fmt.Sprintf("Cannot delete unknown item type '%s'", itemType), nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Invalid("Cannot delete: id is empty", nil)
	}

	_, err := a.client.Do(ctx, http.MethodDelete, endpoint+"/"+url.PathEscape(id), nil, nil)
	switch {
	case transport.IsStatus(err, http.StatusNotFound):
		res := contractx.Warning(fmt.Sprintf("%s was already deleted", contractx.EntityType(itemType).Title()))
		res.ID = id
		return res
	case err != nil:
		return contractx.Failure(err, fmt.Sprintf("%s not deleted", contractx.EntityType(itemType).Title()))
	}
	return contractx.Success(fmt.Sprintf("%s deleted", contractx.EntityType(itemType).Title()), id)
}

var deleteEndpoints = map[contractx.ItemType]string{
	contractx.ItemPerson:  "people",
	contractx.ItemContact: "people",
	contractx.ItemLead:    "people",
	contractx.ItemCompany: "companies",
	contractx.ItemTask:    "tasks",
	contractx.ItemNote:    "notes",
}

// entityFor maps caller entity names onto Twenty's person and company.
func entityFor(e contractx.EntityType) (contractx.EntityType, bool) {
	switch contractx.ParseEntityType(string(e)) {
	case contractx.EntityPerson, contractx.EntityLead, "contact":
		return contractx.EntityPerson, true
	case contractx.EntityCompany:
		return contractx.EntityCompany, true
	}
	return "", false
}

func notLinked(target string, err error) string {
	if errors.Is(err, contractx.ErrNotFound) {
		return fmt.Sprintf("not linked: no contact matches '%s'", target)
	}
	return fmt.Sprintf("not linked: lookup of '%s' failed", target)
}

func linkLabel(m resolve.Match) string {
	if m.Field == resolve.FieldID {
		return m.Record.ID
	}
	return m.Text
}

func noteTitle(title, content string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	runes := []rune(content)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return content
}
