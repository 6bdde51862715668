package zoho

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

func (a *Adapter) GetDetails(ctx context.Context, ref string) contractx.Result {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return contractx.Invalid("Lead reference is empty", nil)
	}

	match, err := a.resolver.Resolve(ctx, ref, contractx.EntityLead)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.NotFound(fmt.Sprintf("Lead '%s' not found", ref))
		}
		return contractx.Failure(err, fmt.Sprintf("Lookup of '%s' failed", ref))
	}

	var resp envelope[lead]
	err = a.client.JSON(ctx, http.MethodGet, moduleLeads+"/"+url.PathEscape(match.Record.ID), nil, nil, &resp)
	switch {
	case transport.IsStatus(err, http.StatusNotFound):
		return contractx.NotFound(fmt.Sprintf("Lead '%s' not found", ref))
	case err != nil:
		return contractx.Failure(err, "Lead details unavailable")
	case len(resp.Data) == 0:
		return contractx.NotFound(fmt.Sprintf("Lead '%s' not found", ref))
	}
	l := resp.Data[0]

	lines := []string{"👤 " + l.fullName()}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	address := strings.Join(nonEmpty(l.Street, strings.TrimSpace(l.ZipCode+" "+l.City), l.State, l.Country), ", ")

	add("💼 Job", l.Designation)
	add("🏢 Company", l.Company)
	add("📧 Email", l.Email)
	add("📞 Phone", l.Phone)
	add("📱 Mobile", l.Mobile)
	add("📍 Address", address)
	add("🌐 Website", l.Website)
	add("🔗 LinkedIn", l.LinkedIn)
	add("🏭 Industry", l.Industry)
	add("👥 Employees", l.Employees.String())
	add("💰 Annual revenue", l.AnnualRevenue.String())
	if area := l.RoofArea.String(); area != "" {
		add("☀️ Roof area", area+" m²")
	}
	add("🌍 Domain", l.Domain)
	add("📥 Lead source", l.LeadSource)
	add("📝 Description", l.Description)
	add("🗓️ Created", dateOnly(l.CreatedTime))

	id := l.ID
	if id == "" {
		id = match.Record.ID
	}
	return contractx.Success("Lead details", id).WithLines(lines...)
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
