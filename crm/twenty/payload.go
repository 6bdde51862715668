package twenty

import (
	"strings"

	"github.com/tidwall/gjson"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/resolve"
)

type personName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type personPayload struct {
	Name      personName            `json:"name"`
	Emails    fieldmap.EmailsValue  `json:"emails"`
	Phones    *fieldmap.PhonesValue `json:"phones,omitempty"`
	CompanyID string                `json:"companyId,omitempty"`
}

type richText struct {
	Markdown  string  `json:"markdown"`
	Blocknote *string `json:"blocknote"`
}

type taskPayload struct {
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Position int       `json:"position"`
	BodyV2   *richText `json:"bodyV2,omitempty"`
	DueAt    string    `json:"dueAt,omitempty"`
}

type notePayload struct {
	Title  string   `json:"title"`
	BodyV2 richText `json:"bodyV2"`
}

type taskTarget struct {
	TaskID   string `json:"taskId"`
	PersonID string `json:"personId"`
}

type noteTarget struct {
	NoteID   string `json:"noteId"`
	PersonID string `json:"personId"`
}

// Responses are usually wrapped in {"data": ...}; some deployments return
// the bare object.
func lookup(raw []byte, path string) gjson.Result {
	if r := gjson.GetBytes(raw, "data."+path); r.Exists() {
		return r
	}
	return gjson.GetBytes(raw, path)
}

// createdID pulls the new record id out of a create response, which is
// either {"data":{"createX":{"id":...}}} or {"data":{"id":...}}.
func createdID(raw []byte, op string) string {
	for _, path := range []string{op + ".id", "id"} {
		if id := lookup(raw, path).String(); id != "" {
			return id
		}
	}
	return ""
}

func personRecord(p gjson.Result) resolve.Record {
	return resolve.Record{
		ID:        p.Get("id").String(),
		Kind:      contractx.EntityPerson,
		Name:      strings.TrimSpace(p.Get("name.firstName").String() + " " + p.Get("name.lastName").String()),
		Email:     primaryEmail(p),
		CompanyID: p.Get("companyId").String(),
		Phone:     formatPhone(p.Get("phones")),
		Title:     p.Get("jobTitle").String(),
	}
}

func companyRecord(c gjson.Result) resolve.Record {
	return resolve.Record{
		ID:   c.Get("id").String(),
		Kind: contractx.EntityCompany,
		Name: strings.TrimSpace(c.Get("name").String()),
	}
}

func primaryEmail(p gjson.Result) string {
	if e := p.Get("emails.primaryEmail").String(); e != "" {
		return e
	}
	return p.Get("emails.0.primaryEmail").String()
}

func formatPhone(phones gjson.Result) string {
	number := strings.TrimSpace(phones.Get("primaryPhoneNumber").String())
	if number == "" {
		return ""
	}
	return strings.TrimSpace(phones.Get("primaryPhoneCallingCode").String() + " " + number)
}
