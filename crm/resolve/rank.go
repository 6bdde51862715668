package resolve

import (
	"fmt"
	"sort"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

// ColleagueScore is the floor for people working at a matched company.
const ColleagueScore = 85.0

// Rank returns every company and person matching query, best first. People
// whose CompanyID belongs to a matched company are kept as colleagues with a
// score of at least ColleagueScore even when they do not match themselves.
// Equal scores keep input order, companies before people.
func Rank(query string, companies, people []Record, t Thresholds) []Match {
	var hits []Match

	matched := make(map[string]string, len(companies))
	for _, c := range companies {
		if c.ID == "" || c.Name == "" {
			continue
		}
		if s := Score(query, c.Name); s >= t.Company {
			matched[c.ID] = c.Name
			hits = append(hits, Match{Record: c, Field: FieldCompany, Text: c.Name, Score: s})
		}
	}

	seen := make(map[string]bool, len(people))
	for _, p := range people {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		best, ok := bestPersonField(query, p, t)

		if companyName, colleague := matched[p.CompanyID]; colleague && p.CompanyID != "" {
			if p.Company == "" {
				p.Company = companyName
			}
			hits = append(hits, Match{Record: p, Field: FieldColleague, Text: companyName, Score: max(best.Score, ColleagueScore)})
			seen[p.ID] = true
			continue
		}
		if ok {
			best.Record = p
			hits = append(hits, best)
			seen[p.ID] = true
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

// bestPersonField returns the top-scoring field of p and whether any field
// cleared its threshold. The score is reported even when nothing matched.
func bestPersonField(query string, p Record, t Thresholds) (Match, bool) {
	var (
		best Match
		ok   bool
	)
	try := func(field Field, text string, threshold float64) {
		if text == "" {
			return
		}
		s := Score(query, text)
		if s > best.Score {
			best = Match{Field: field, Text: text, Score: s}
		}
		if s >= threshold {
			ok = true
		}
	}
	try(FieldName, p.Name, t.Name)
	try(FieldEmail, p.Email, t.Email)
	if p.Kind != contractx.EntityCompany {
		try(FieldCompany, p.Company, t.Company)
	}
	return best, ok
}

// Label is " [Match: 92%]" for imperfect scores and empty for exact ones.
func (m Match) Label() string {
	if m.Score >= 100 {
		return ""
	}
	return fmt.Sprintf(" [Match: %.0f%%]", m.Score)
}
