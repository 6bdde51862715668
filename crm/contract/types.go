package contract

import "strings"

// EntityType names a record kind an update or resolution targets.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityCompany EntityType = "company"
	EntityLead    EntityType = "lead"
)

func ParseEntityType(raw string) EntityType {
	return EntityType(strings.ToLower(strings.TrimSpace(raw)))
}

// Title is the capitalized entity name used in messages.
func (e EntityType) Title() string {
	if e == "" {
		return ""
	}
	return strings.ToUpper(string(e[:1])) + string(e[1:])
}

// ItemType names a deletable record kind.
type ItemType string

const (
	ItemPerson  ItemType = "person"
	ItemContact ItemType = "contact"
	ItemCompany ItemType = "company"
	ItemLead    ItemType = "lead"
	ItemTask    ItemType = "task"
	ItemNote    ItemType = "note"
)

func ParseItemType(raw string) ItemType {
	return ItemType(strings.ToLower(strings.TrimSpace(raw)))
}

type ContactInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (c ContactInput) Trimmed() ContactInput {
	return ContactInput{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Company:   strings.TrimSpace(c.Company),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}
}

func (c ContactInput) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type TaskInput struct {
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	DueDate string `json:"due_date,omitempty"`
	Target  string `json:"target,omitempty"`
}

type NoteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Target  string `json:"target"`
}

// AppliedField is a field that passed the whitelist and validation and was written.
type AppliedField struct {
	Name        string
	TargetField string
	Value       any
}

// SkippedField is a field that was dropped before the write, with the reason.
type SkippedField struct {
	Name   string
	Reason string
}
