package fieldmap

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

// FieldError reports why a single field value was rejected.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return contractx.ErrValidation }

// Patch maps backend field names to normalized values.
type Patch map[string]any

// Validate checks a raw value for the generic field name of entity and
// returns it in the shape the backend expects. Coercion and auto-fix run
// before the content rule; the first failure aborts.
func (m *Mapping) Validate(entity contractx.EntityType, name string, raw any) (any, error) {
	f, ok := m.Field(entity, name)
	if !ok {
		return nil, &FieldError{Field: name, Reason: fmt.Sprintf("not allowed for %s", entity)}
	}

	value, err := coerce(f, raw)
	if err != nil {
		return nil, err
	}

	if f.Validation != "" && !strings.Contains(displayString(value), f.Validation) {
		return nil, &FieldError{Field: name, Reason: m.ruleMessage(f.Validation)}
	}
	return value, nil
}

func coerce(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, &FieldError{Field: f.Name, Reason: "value is empty"}
	}

	switch f.Type {
	case TypeNumber:
		n, ok := toNumber(raw)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be a number, got %q", displayString(raw))}
		}
		if f.Min != nil && n < *f.Min {
			return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be at least %s", formatNumber(*f.Min))}
		}
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
		return n, nil

	case TypeDate:
		s, ok := raw.(string)
		s = strings.TrimSpace(s)
		if !ok || len(s) != 10 || strings.Count(s, "-") != 2 {
			format := f.Format
			if format == "" {
				format = "YYYY-MM-DD"
			}
			return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("must use format %s", format)}
		}
		return s, nil

	case TypeURL:
		s, ok := raw.(string)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: "must be a URL string"}
		}
		s = strings.TrimSpace(s)
		if f.AutoFix == AutoFixOn {
			s = withScheme(s)
		}
		return s, nil

	case TypeLinks:
		s, ok := raw.(string)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: "must be a URL string"}
		}
		s = strings.TrimSpace(s)
		if f.AutoFix != AutoFixOn {
			return s, nil
		}
		return LinksValue{PrimaryLinkURL: withScheme(s), SecondaryLinks: []LinkValue{}}, nil

	case TypePhones:
		s, ok := scalarString(raw)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: "must be text"}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, &FieldError{Field: f.Name, Reason: "value is empty"}
		}
		if f.AutoFix != AutoFixOn {
			return s, nil
		}
		return ParsePhone(s), nil

	case TypeEmails:
		s, ok := raw.(string)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: "must be an email string"}
		}
		s = strings.TrimSpace(s)
		if f.AutoFix != AutoFixOn {
			return s, nil
		}
		return EmailsValue{PrimaryEmail: s, AdditionalEmails: []string{}}, nil

	default:
		s, ok := scalarString(raw)
		if !ok {
			return nil, &FieldError{Field: f.Name, Reason: "must be text"}
		}
		s = strings.TrimSpace(s)
		if f.AutoFix == AutoFixStripProtocol {
			s = stripScheme(s)
		}
		return s, nil
	}
}

// Apply validates every entry of fields against entity. Accepted values
// land in the patch under their backend name; everything else is reported
// as skipped. Whitelisted names are visited in mapping order, unknown names
// alphabetically after them.
func (m *Mapping) Apply(entity contractx.EntityType, fields map[string]any) (Patch, []contractx.AppliedField, []contractx.SkippedField) {
	patch := make(Patch, len(fields))
	var (
		applied []contractx.AppliedField
		skipped []contractx.SkippedField
	)

	for _, name := range m.visitOrder(entity, fields) {
		value, err := m.Validate(entity, name, fields[name])
		if err != nil {
			reason := err.Error()
			if fe, ok := err.(*FieldError); ok {
				reason = fe.Reason
			}
			skipped = append(skipped, contractx.SkippedField{Name: name, Reason: reason})
			continue
		}
		target, _ := m.TargetFieldName(entity, name)
		patch[target] = value
		applied = append(applied, contractx.AppliedField{Name: name, TargetField: target, Value: value})
	}
	return patch, applied, skipped
}

func (m *Mapping) visitOrder(entity contractx.EntityType, fields map[string]any) []string {
	order := make([]string, 0, len(fields))
	for _, f := range m.AllowedFields(entity) {
		if _, ok := fields[f.Name]; ok {
			order = append(order, f.Name)
		}
	}
	var unknown []string
	for name := range fields {
		if !m.IsFieldAllowed(entity, name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return append(order, unknown...)
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func displayString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return formatNumber(x)
	}
	return fmt.Sprint(v)
}

// scalarString renders text, number and bool values. Maps, slices and
// other composites are rejected.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return formatNumber(x), true
	case float32:
		return formatNumber(float64(x)), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), true
	}
	return "", false
}

// withScheme adds https:// unless the value already carries a scheme.
func withScheme(s string) string {
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}

func stripScheme(s string) string {
	s = strings.TrimPrefix(s, "https://")
	return strings.TrimPrefix(s, "http://")
}
