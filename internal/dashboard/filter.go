package dashboard

import (
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/model"
)

// Filter returns the cases whose title or description contains query,
// ignoring case. An empty query returns cases as is. A case without a
// description can only match on its title.
func Filter(cases []model.Case, query string) []model.Case {
	if query == "" {
		return cases
	}
	q := strings.ToLower(query)
	out := make([]model.Case, 0, len(cases))
	for _, c := range cases {
		if strings.Contains(strings.ToLower(c.Title), q) ||
			(c.Description != "" && strings.Contains(strings.ToLower(c.Description), q)) {
			out = append(out, c)
		}
	}
	return out
}
