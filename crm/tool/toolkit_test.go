package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/undo"
)

// fakeAdapter records calls and hands out sequential ids.
type fakeAdapter struct {
	system    string
	next      int
	deleted   []string
	deleteRes func(id string) contractx.Result
	lastTask  contractx.TaskInput
	lastNote  contractx.NoteInput
	lastQuery string
	lastPatch map[string]any
	lastType  contractx.EntityType
}

var _ contractx.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) System() string { return f.system }

func (f *fakeAdapter) newID(prefix string) string {
	f.next++
	return fmt.Sprintf("%s-%d", prefix, f.next)
}

func (f *fakeAdapter) Search(_ context.Context, query string) contractx.Result {
	f.lastQuery = query
	return contractx.NoMatches(query)
}

func (f *fakeAdapter) CreateContact(_ context.Context, in contractx.ContactInput) contractx.Result {
	if in.Email == "" {
		return contractx.Invalid("Contact not created: missing required field(s): email", nil)
	}
	return contractx.Success("Contact created: "+in.FullName(), f.newID("c"))
}

func (f *fakeAdapter) CreateTask(_ context.Context, in contractx.TaskInput) contractx.Result {
	f.lastTask = in
	return contractx.Success("Task created", f.newID("t"))
}

func (f *fakeAdapter) CreateNote(_ context.Context, in contractx.NoteInput) contractx.Result {
	f.lastNote = in
	return contractx.Success("Note created", f.newID("n"))
}

func (f *fakeAdapter) UpdateEntity(_ context.Context, _ string, entityType contractx.EntityType, fields map[string]any) contractx.Result {
	f.lastType = entityType
	f.lastPatch = fields
	return contractx.Success("Updated", "x-1")
}

func (f *fakeAdapter) DeleteItem(_ context.Context, itemType contractx.ItemType, id string) contractx.Result {
	f.deleted = append(f.deleted, string(itemType)+":"+id)
	if f.deleteRes != nil {
		return f.deleteRes(id)
	}
	return contractx.Success("Deleted", id)
}

func (f *fakeAdapter) GetDetails(_ context.Context, id string) contractx.Result {
	return contractx.Success("Details", id)
}

func TestUndoRemovesOnlyLastContact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeAdapter{system: "twenty"}
	kit := NewToolkit(fake, undo.NewMemoryStore(), "user-1")

	for _, email := range []string{"a@x.com", "b@x.com"} {
		if res := kit.CreateContact(ctx, contractx.ContactInput{FirstName: "A", Email: email}); !res.OK() {
			t.Fatalf("CreateContact() = %s", res.Text())
		}
	}

	res := kit.Undo(ctx)
	if !res.OK() {
		t.Fatalf("Undo() = %s", res.Text())
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "person:c-2" {
		t.Fatalf("deleted = %v, want [person:c-2]", fake.deleted)
	}

	if res := kit.Undo(ctx); res.Outcome != contractx.OutcomeWarning || !strings.Contains(res.Text(), "Nothing to undo") {
		t.Fatalf("second Undo() = %s, want nothing to undo", res.Text())
	}
	if len(fake.deleted) != 1 {
		t.Fatalf("deleted = %v, want a single delete", fake.deleted)
	}
}

func TestUndoUsesLeadOnZoho(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeAdapter{system: "zoho"}
	kit := NewToolkit(fake, undo.NewMemoryStore(), "user-1")

	kit.CreateContact(ctx, contractx.ContactInput{FirstName: "A", Email: "a@x.com"})
	kit.Undo(ctx)
	if len(fake.deleted) != 1 || fake.deleted[0] != "lead:c-1" {
		t.Fatalf("deleted = %v, want [lead:c-1]", fake.deleted)
	}
}

func TestUndoClearsAlreadyDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := undo.NewMemoryStore()
	fake := &fakeAdapter{system: "twenty", deleteRes: func(id string) contractx.Result {
		res := contractx.Warning("Task was already deleted")
		res.ID = id
		return res
	}}
	kit := NewToolkit(fake, store, "user-1")

	kit.CreateTask(ctx, contractx.TaskInput{Title: "Call"})
	if res := kit.Undo(ctx); res.Outcome != contractx.OutcomeWarning {
		t.Fatalf("Undo() = %s, want warning", res.Text())
	}
	if _, err := store.Load(ctx, "user-1"); !errors.Is(err, undo.ErrNotFound) {
		t.Fatalf("Load() error = %v, want entry cleared", err)
	}
}

func TestUndoKeepsEntryOnFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := undo.NewMemoryStore()
	fake := &fakeAdapter{system: "twenty", deleteRes: func(string) contractx.Result {
		return contractx.Failure(fmt.Errorf("%w: dial", contractx.ErrNetwork), "Note not deleted")
	}}
	kit := NewToolkit(fake, store, "user-1")

	kit.CreateNote(ctx, contractx.NoteInput{Content: "x", Target: "Max"})
	if res := kit.Undo(ctx); res.Outcome != contractx.OutcomeNetworkFailure {
		t.Fatalf("Undo() = %s, want network failure", res.Text())
	}
	entry, err := store.Load(ctx, "user-1")
	if err != nil || entry.EntityID != "n-1" || entry.EntityType != contractx.ItemNote {
		t.Fatalf("Load() = %+v, %v, want note entry kept", entry, err)
	}
}

func TestFailedCreateKeepsPreviousEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := undo.NewMemoryStore()
	kit := NewToolkit(&fakeAdapter{system: "twenty"}, store, "user-1")

	kit.CreateTask(ctx, contractx.TaskInput{Title: "Call"})
	kit.CreateContact(ctx, contractx.ContactInput{FirstName: "A"})

	entry, err := store.Load(ctx, "user-1")
	if err != nil || entry.EntityID != "t-1" {
		t.Fatalf("Load() = %+v, %v, want task entry", entry, err)
	}
}

func TestAttribution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeAdapter{system: "twenty"}
	kit := NewToolkit(fake, undo.NewMemoryStore(), "user-1", WithAttribution("Max"))

	kit.CreateTask(ctx, contractx.TaskInput{Title: "Call", Body: "Discuss offer"})
	if want := "Discuss offer\n\n---\n_via Max_"; fake.lastTask.Body != want {
		t.Fatalf("task body = %q, want %q", fake.lastTask.Body, want)
	}

	kit.CreateTask(ctx, contractx.TaskInput{Title: "Call"})
	if fake.lastTask.Body != "" {
		t.Fatalf("empty task body = %q, want untouched", fake.lastTask.Body)
	}

	kit.CreateNote(ctx, contractx.NoteInput{Content: "Roof is 150 m²", Target: "Max"})
	if !strings.HasSuffix(fake.lastNote.Content, "_via Max_") {
		t.Fatalf("note content = %q, want attribution", fake.lastNote.Content)
	}
}

func TestExecuteDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakeAdapter{system: "twenty"}
	kit := NewToolkit(fake, undo.NewMemoryStore(), "user-1")

	res, err := kit.Execute(ctx, ToolUpdateEntity, map[string]any{
		"target":      "Expoya",
		"entity_type": "Company",
		"fields":      `{"size": 50, "website": "expoya.com"}`,
	})
	if err != nil || !res.OK() {
		t.Fatalf("Execute(update) = %s, %v", res.Text(), err)
	}
	if fake.lastType != contractx.EntityCompany || fake.lastPatch["size"] != float64(50) {
		t.Fatalf("update args = %v %v", fake.lastType, fake.lastPatch)
	}

	res, err = kit.Execute(ctx, ToolUpdateEntity, map[string]any{"target": "Expoya", "entity_type": "company", "fields": "not json"})
	if err != nil || res.Outcome != contractx.OutcomeInvalid {
		t.Fatalf("Execute(bad fields) = %s, %v, want invalid", res.Text(), err)
	}

	res, _ = kit.Execute(ctx, ToolSearchContacts, map[string]any{"query": "  Expoya "})
	if fake.lastQuery != "Expoya" || res.Outcome != contractx.OutcomeEmpty {
		t.Fatalf("Execute(search) = %s, query %q", res.Text(), fake.lastQuery)
	}

	if _, err := kit.Execute(ctx, "send_email", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Execute(unknown) error = %v, want ErrUnknownTool", err)
	}
}

func TestExecutorRendersText(t *testing.T) {
	t.Parallel()

	kit := NewToolkit(&fakeAdapter{system: "twenty"}, undo.NewMemoryStore(), "user-1")
	text, err := kit.Executor()(context.Background(), ToolCreateTask, map[string]any{"title": "Call"})
	if err != nil {
		t.Fatalf("Executor() error = %v", err)
	}
	if id, ok := contractx.ExtractID(text); !ok || id != "t-1" {
		t.Fatalf("ExtractID(%q) = %q, %v", text, id, ok)
	}

	text, _ = kit.Executor()(context.Background(), ToolUndo, nil)
	if !strings.HasPrefix(text, contractx.MarkSuccess) {
		t.Fatalf("undo text = %q", text)
	}
}

func TestExecuteCallAnswersWithToolMessage(t *testing.T) {
	t.Parallel()

	kit := NewToolkit(&fakeAdapter{system: "twenty"}, undo.NewMemoryStore(), "user-1")
	call := openai.ChatCompletionMessageToolCall{
		ID: "call_1",
		Function: openai.ChatCompletionMessageToolCallFunction{
			Name:      ToolCreateNote,
			Arguments: `{"content":"Met at fair","target":"Max"}`,
		},
	}

	msg := kit.ExecuteCall(context.Background(), call)
	if msg.OfTool == nil || msg.OfTool.ToolCallID != "call_1" {
		t.Fatalf("ExecuteCall() = %+v, want tool message for call_1", msg)
	}
	if got := msg.OfTool.Content.OfString.Value; !strings.Contains(got, "(ID: n-1)") {
		t.Fatalf("tool message content = %q", got)
	}

	call.Function.Arguments = "{"
	msg = kit.ExecuteCall(context.Background(), call)
	if got := msg.OfTool.Content.OfString.Value; !strings.HasPrefix(got, contractx.MarkFailure) {
		t.Fatalf("tool message content = %q, want failure", got)
	}
}

func TestMappingFallsBackToEmbedded(t *testing.T) {
	t.Parallel()

	kit := NewToolkit(&fakeAdapter{system: "zoho"}, undo.NewMemoryStore(), "user-1")
	m, err := kit.Mapping()
	if err != nil {
		t.Fatalf("Mapping() error = %v", err)
	}
	if _, ok := m.Field(contractx.EntityLead, "roof_area"); !ok {
		t.Fatal("zoho mapping has no roof_area")
	}
}
