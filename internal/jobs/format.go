package jobs

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jmehdipour/leadsync/internal/model"
)

var (
	leadingJunk  = regexp.MustCompile(`^[0-9._+-]+`)
	trailingJunk = regexp.MustCompile(`[._+-]+$`)
	separators   = regexp.MustCompile(`[._+-]+`)
)

// displayName picks the item name for a lead: the full name, else a name
// derived from the local part of an email-like login, else the id.
func displayName(l model.Lead) string {
	if n := strings.TrimSpace(l.FullName); n != "" {
		return n
	}
	id := strconv.FormatInt(l.ID, 10)

	candidate := ""
	switch {
	case strings.Contains(l.Email, "@"):
		candidate = l.Email
	case strings.Contains(l.CRMLogin, "@"):
		candidate = l.CRMLogin
	default:
		return id
	}

	local, _, _ := strings.Cut(candidate, "@")
	local = leadingJunk.ReplaceAllString(local, "")
	local = trailingJunk.ReplaceAllString(local, "")
	local = separators.ReplaceAllString(local, " ")

	words := strings.Fields(local)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	if name := strings.Join(words, " "); name != "" {
		return name
	}
	return id
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// dateValue formats a date column value, nil when s does not parse.
func dateValue(s string) map[string]string {
	t, ok := model.ParseISODate(s)
	if !ok {
		return nil
	}
	return map[string]string{"date": t.UTC().Format("2006-01-02")}
}

func emailValue(s string) map[string]string {
	return map[string]string{"email": s, "text": s}
}

func numberText(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// columnValues collects column id -> value, dropping unknown columns and
// nil values.
type columnValues map[string]any

func (cv columnValues) set(columnID string, v any) {
	if columnID == "" || v == nil {
		return
	}
	switch x := v.(type) {
	case map[string]string:
		if x == nil {
			return
		}
	case string:
		if x == "" {
			return
		}
	}
	cv[columnID] = v
}
