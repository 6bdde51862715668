package fieldmap

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeURL    FieldType = "url"
	TypeLinks  FieldType = "links_object"
	TypePhones FieldType = "phones_object"
	TypeEmails FieldType = "emails_object"
)

func (t FieldType) known() bool {
	switch t {
	case TypeString, TypeNumber, TypeDate, TypeURL, TypeLinks, TypePhones, TypeEmails:
		return true
	}
	return false
}

// AutoFix is decoded from either a boolean or the string "strip_protocol".
type AutoFix string

const (
	AutoFixNone          AutoFix = ""
	AutoFixOn            AutoFix = "on"
	AutoFixStripProtocol AutoFix = "strip_protocol"
)

func (a *AutoFix) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*a = AutoFixNone
	case bool:
		if v {
			*a = AutoFixOn
		} else {
			*a = AutoFixNone
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false":
			*a = AutoFixNone
		case "true":
			*a = AutoFixOn
		case string(AutoFixStripProtocol):
			*a = AutoFixStripProtocol
		default:
			return fmt.Errorf("line %d: unknown auto_fix %q", node.Line, v)
		}
	default:
		return fmt.Errorf("line %d: auto_fix must be a bool or string", node.Line)
	}
	return nil
}

// Field is one whitelisted generic field.
type Field struct {
	Name        string    `yaml:"-"`
	CRMField    string    `yaml:"crm_field"`
	Type        FieldType `yaml:"type"`
	Validation  string    `yaml:"validation"`
	AutoFix     AutoFix   `yaml:"auto_fix"`
	Min         *float64  `yaml:"min"`
	Format      string    `yaml:"format"`
	Description string    `yaml:"description"`
	LLMHint     string    `yaml:"llm_hint"`
	Example     string    `yaml:"example"`
	Custom      bool      `yaml:"custom"`
	Customer    string    `yaml:"customer"`
}

// fieldSet keeps fields in file order, which yaml maps would lose.
type fieldSet struct {
	order  []string
	byName map[string]Field
}

func (s *fieldSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	s.order = make([]string, 0, len(node.Content)/2)
	s.byName = make(map[string]Field, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(node.Content[i].Value)
		var f Field
		if err := node.Content[i+1].Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		f.Name = name
		if _, dup := s.byName[name]; dup {
			return fmt.Errorf("line %d: duplicate field %q", node.Content[i].Line, name)
		}
		s.order = append(s.order, name)
		s.byName[name] = f
	}
	return nil
}

type entityConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Fields   fieldSet `yaml:"fields"`
}

type ruleConfig struct {
	Message string `yaml:"message"`
}

type mappingFile struct {
	CRMSystem  string                   `yaml:"crm_system"`
	Version    string                   `yaml:"version"`
	Validation map[string]ruleConfig    `yaml:"validation"`
	Entities   map[string]*entityConfig `yaml:"entities"`
}

// Mapping is the immutable whitelist of one CRM system. It is safe for
// concurrent use.
type Mapping struct {
	system   string
	version  string
	rules    map[string]ruleConfig
	entities map[string]*entityConfig
}

func parseMapping(raw []byte) (*Mapping, error) {
	var file mappingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	switch {
	case strings.TrimSpace(file.CRMSystem) == "":
		return nil, fmt.Errorf("'crm_system' is missing")
	case strings.TrimSpace(file.Version) == "":
		return nil, fmt.Errorf("'version' is missing")
	case len(file.Entities) == 0:
		return nil, fmt.Errorf("'entities' is missing")
	}

	for entity, cfg := range file.Entities {
		if cfg == nil {
			return nil, fmt.Errorf("entity %q is empty", entity)
		}
		for _, name := range cfg.Fields.order {
			f := cfg.Fields.byName[name]
			if strings.TrimSpace(f.CRMField) == "" {
				return nil, fmt.Errorf("entity %q field %q: crm_field is missing", entity, name)
			}
			if !f.Type.known() {
				return nil, fmt.Errorf("entity %q field %q: unknown type %q", entity, name, f.Type)
			}
		}
	}

	rules := file.Validation
	if rules == nil {
		rules = map[string]ruleConfig{}
	}
	return &Mapping{
		system:   strings.ToLower(strings.TrimSpace(file.CRMSystem)),
		version:  strings.TrimSpace(file.Version),
		rules:    rules,
		entities: file.Entities,
	}, nil
}

func (m *Mapping) System() string  { return m.system }
func (m *Mapping) Version() string { return m.version }

// Entities returns the entity types declared by the mapping, sorted.
func (m *Mapping) Entities() []contractx.EntityType {
	out := make([]contractx.EntityType, 0, len(m.entities))
	for name := range m.entities {
		out = append(out, contractx.EntityType(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Mapping) entity(entity contractx.EntityType) *entityConfig {
	return m.entities[string(entity)]
}

// AllowedFields returns the whitelist for entity in file order. Unknown
// entities have no allowed fields.
func (m *Mapping) AllowedFields(entity contractx.EntityType) []Field {
	cfg := m.entity(entity)
	if cfg == nil {
		return nil
	}
	out := make([]Field, 0, len(cfg.Fields.order))
	for _, name := range cfg.Fields.order {
		out = append(out, cfg.Fields.byName[name])
	}
	return out
}

func (m *Mapping) Field(entity contractx.EntityType, name string) (Field, bool) {
	cfg := m.entity(entity)
	if cfg == nil {
		return Field{}, false
	}
	f, ok := cfg.Fields.byName[name]
	return f, ok
}

func (m *Mapping) IsFieldAllowed(entity contractx.EntityType, name string) bool {
	_, ok := m.Field(entity, name)
	return ok
}

// TargetFieldName maps a generic name to the backend field name.
func (m *Mapping) TargetFieldName(entity contractx.EntityType, name string) (string, bool) {
	f, ok := m.Field(entity, name)
	if !ok {
		return "", false
	}
	return f.CRMField, true
}

// Endpoint returns the REST resource of entity, defaulting to its name.
func (m *Mapping) Endpoint(entity contractx.EntityType) string {
	if cfg := m.entity(entity); cfg != nil && strings.TrimSpace(cfg.Endpoint) != "" {
		return strings.TrimSpace(cfg.Endpoint)
	}
	return string(entity)
}

// FieldGuide lists the whitelist of entity in a form suited to an LLM prompt.
func (m *Mapping) FieldGuide(entity contractx.EntityType) string {
	fields := m.AllowedFields(entity)
	if len(fields) == 0 {
		return fmt.Sprintf("No fields defined for %s", entity)
	}

	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, fmt.Sprintf("%s FIELDS:", strings.ToUpper(string(entity))))
	for _, f := range fields {
		line := fmt.Sprintf("- `%s`: %s", f.Name, f.Description)
		if f.Custom {
			if f.Customer != "" {
				line += fmt.Sprintf(" [CUSTOM: %s]", f.Customer)
			} else {
				line += " [CUSTOM]"
			}
		}
		if f.LLMHint != "" {
			line += fmt.Sprintf(" (%s)", f.LLMHint)
		}
		if f.Example != "" {
			line += fmt.Sprintf(" - e.g. %s", f.Example)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Mapping) ruleMessage(rule string) string {
	if r, ok := m.rules[rule]; ok && strings.TrimSpace(r.Message) != "" {
		return strings.TrimSpace(r.Message)
	}
	return fmt.Sprintf("must contain %s", rule)
}
