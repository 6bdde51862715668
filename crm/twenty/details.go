package twenty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/transport"
)

// GetDetails renders the full person record. The company name needs a
// second request; if it fails the company is shown as unknown.
func (a *Adapter) GetDetails(ctx context.Context, ref string) contractx.Result {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return contractx.Invalid("Contact reference is empty", nil)
	}

	match, err := a.resolver.Resolve(ctx, ref, contractx.EntityPerson)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("Contact '%s' not found", ref))
		}
		return contractx.Failure(err, fmt.Sprintf("Lookup of '%s' failed", ref))
	}
	id := match.Record.ID

	raw, err := a.client.Do(ctx, http.MethodGet, "people/"+url.PathEscape(id), nil, nil)
	if err != nil {
		if transport.IsStatus(err, http.StatusNotFound) {
			return contractx.NotFound(fmt.Sprintf("Contact '%s' not found", ref))
		}
		return contractx.Failure(err, "Contact details unavailable")
	}
	p := lookup(raw, "person")
	if !p.IsObject() {
		return contractx.NotFound(fmt.Sprintf("Contact '%s' not found", ref))
	}

	rec := personRecord(p)
	lines := []string{fmt.Sprintf("👤 %s", rec.Name)}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}

	add("💼 Job", rec.Title)
	if rec.CompanyID != "" {
		add("🏢 Company", a.companyName(ctx, rec.CompanyID))
	}
	add("📧 Email", rec.Email)
	add("📞 Phone", rec.Phone)
	add("📍 City", p.Get("city").String())
	add("🔗 LinkedIn", p.Get("linkedinLink.primaryLinkUrl").String())
	add("🔗 X", p.Get("xLink.primaryLinkUrl").String())
	add("🎂 Birthday", p.Get("birthday").String())
	add("🗓️ Created", dateOnly(p.Get("createdAt").String()))
	add("🗓️ Updated", dateOnly(p.Get("updatedAt").String()))

	return contractx.Success("Contact details", rec.ID).WithLines(lines...)
}

func (a *Adapter) companyName(ctx context.Context, id string) string {
	raw, err := a.client.Do(ctx, http.MethodGet, "companies/"+url.PathEscape(id), nil, nil)
	if err != nil {
		a.logger.Debug().Err(err).Str("company_id", id).Msg("company lookup failed")
		return "unknown"
	}
	if name := lookup(raw, "company.name").String(); name != "" {
		return name
	}
	return "unknown"
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
