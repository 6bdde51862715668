package tool

import (
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"

	"github.com/tanpawarit/chative-crm/crm/fieldmap"
)

const (
	ToolSearchContacts = "search_contacts"
	ToolCreateContact  = "create_contact"
	ToolCreateTask     = "create_task"
	ToolCreateNote     = "create_note"
	ToolUpdateEntity   = "update_entity"
	ToolGetDetails     = "get_contact_details"
	ToolUndo           = "undo_last_action"
)

type paramKind string

const (
	kindString paramKind = "string"
	kindObject paramKind = "object"
)

type param struct {
	name     string
	kind     paramKind
	desc     string
	required bool
	enum     []string
}

type toolSpec struct {
	name   string
	desc   string
	params []param
}

// specs is the single source both catalog renderings are built from.
func specs(m *fieldmap.Mapping) []toolSpec {
	target := "Person name, email, company name or record ID. Misspellings are tolerated."
	return []toolSpec{
		{
			name: ToolSearchContacts,
			desc: "Search contacts and companies by name, email or company. Returns IDs.",
			params: []param{
				{name: "query", kind: kindString, desc: "Search text", required: true},
			},
		},
		{
			name: ToolCreateContact,
			desc: "Create a new contact. Only call after the user confirmed the data.",
			params: []param{
				{name: "first_name", kind: kindString, desc: "First name", required: true},
				{name: "last_name", kind: kindString, desc: "Last name"},
				{name: "company", kind: kindString, desc: "Company name"},
				{name: "email", kind: kindString, desc: "Email address", required: true},
				{name: "phone", kind: kindString, desc: "Phone number with country code, e.g. +43 664 1234567"},
			},
		},
		{
			name: ToolCreateTask,
			desc: "Create a task, optionally linked to a contact.",
			params: []param{
				{name: "title", kind: kindString, desc: "Task title", required: true},
				{name: "body", kind: kindString, desc: "Task description"},
				{name: "due_date", kind: kindString, desc: "Due date as YYYY-MM-DD"},
				{name: "target", kind: kindString, desc: target},
			},
		},
		{
			name: ToolCreateNote,
			desc: "Attach a note to an existing contact.",
			params: []param{
				{name: "content", kind: kindString, desc: "Note text", required: true},
				{name: "target", kind: kindString, desc: target, required: true},
				{name: "title", kind: kindString, desc: "Note title, defaults to the start of the content"},
			},
		},
		{
			name: ToolUpdateEntity,
			desc: updateDescription(m),
			params: []param{
				{name: "target", kind: kindString, desc: target, required: true},
				{name: "entity_type", kind: kindString, desc: "Record kind to update", required: true, enum: entityNames(m)},
				{name: "fields", kind: kindObject, desc: "Field names from the list above mapped to new values", required: true},
			},
		},
		{
			name: ToolGetDetails,
			desc: "Show all stored details of one contact.",
			params: []param{
				{name: "target", kind: kindString, desc: target, required: true},
			},
		},
		{
			name:   ToolUndo,
			desc:   "Delete the record created by the last create action of this user.",
			params: nil,
		},
	}
}

func entityNames(m *fieldmap.Mapping) []string {
	entities := m.Entities()
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, string(e))
	}
	return out
}

func updateDescription(m *fieldmap.Mapping) string {
	var b strings.Builder
	b.WriteString("Update fields of an existing record. Use only these field names:\n")
	for _, entity := range m.Entities() {
		b.WriteString("\n")
		b.WriteString(m.FieldGuide(entity))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Infos renders the catalog for eino tool-calling models.
func Infos(m *fieldmap.Mapping) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, 7)
	for _, s := range specs(m) {
		info := &schema.ToolInfo{Name: s.name, Desc: s.desc}
		if len(s.params) > 0 {
			params := make(map[string]*schema.ParameterInfo, len(s.params))
			for _, p := range s.params {
				pi := &schema.ParameterInfo{Type: schema.String, Desc: p.desc, Required: p.required, Enum: p.enum}
				if p.kind == kindObject {
					pi.Type = schema.Object
				}
				params[p.name] = pi
			}
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		out = append(out, info)
	}
	return out
}

// OpenAITools renders the catalog as Chat Completions tool definitions.
func OpenAITools(m *fieldmap.Mapping) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, 7)
	for _, s := range specs(m) {
		props := make(map[string]any, len(s.params))
		required := make([]string, 0, len(s.params))
		for _, p := range s.params {
			prop := map[string]any{"type": string(p.kind), "description": p.desc}
			if len(p.enum) > 0 {
				prop["enum"] = p.enum
			}
			props[p.name] = prop
			if p.required {
				required = append(required, p.name)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.name,
				Description: openai.String(s.desc),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return out
}
