// internal/notify/template.go
package notify

import (
	"fmt"
	"regexp"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// RenderTemplate substitutes {placeholder} tokens from vars. A token
// without a matching key is left verbatim so a typo in a rule template
// is visible in the delivered message instead of silently vanishing.
func RenderTemplate(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := vars[key]; ok {
			return value
		}
		return match
	})
}

// templateVars builds the substitution map for one candidate. Dates and
// amounts use Brazilian formatting since the templates are authored in
// Portuguese.
func templateVars(c *Candidate) map[string]string {
	return map[string]string{
		"nome_usuario":    c.Name,
		"valor_transacao": fmt.Sprintf("R$ %.2f", c.Amount),
		"data_vencimento": c.DueDate.Format("02/01/2006"),
	}
}

// formatDay is the calendar-day component shared by dedup keys and the
// date-window queries.
func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}
