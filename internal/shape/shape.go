// Package shape flattens heterogeneous SAM.gov notice payloads into the fixed
// opportunities row. Extraction is table-driven and never fails: every field
// degrades to its default ("" for text, null for dates and amounts) instead of
// erroring, so one malformed notice cannot poison a batch.
package shape

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
)

// Candidate source paths per column, probed in order; the first present,
// non-empty value wins. Dots descend into nested objects. Upstream renames
// are handled by extending these lists, not by new code.
var (
	idPaths       = []string{"noticeId", "id", "solicitationNumber", "uiLink"}
	titlePaths    = []string{"title"}
	solPaths      = []string{"solicitationNumber"}
	postedPaths   = []string{"postedDate", "publishDate"}
	responsePaths = []string{"responseDate", "dueDate", "archiveDate", "closeDate"}
	setAsidePaths = []string{"typeOfSetAsideDescription", "typeOfSetAside", "setAside"}
	naicsPaths    = []string{"naicsCode", "naics", "classification.naics"}
	orgPaths      = []string{"organizationName", "department", "office"}
	cityPaths     = []string{"placeOfPerformance.city", "placeOfPerformance.location.city", "city"}
	statePaths    = []string{"placeOfPerformance.state", "placeOfPerformance.location.state", "state"}
	zipPaths      = []string{"placeOfPerformance.zip", "placeOfPerformance.location.zip", "zip"}
	urlPaths      = []string{"uiLink", "link", "url"}
	descPaths     = []string{"description"}
	awardPaths    = []string{"award.amount", "awardAmount"}
)

// Shape maps one raw notice onto the fixed row schema. Pure, no I/O.
func Shape(raw map[string]any) models.Opportunity {
	title := text(raw, titlePaths)
	sol := text(raw, solPaths)
	posted := date(raw, postedPaths)

	row := models.Opportunity{
		ID:                 text(raw, idPaths),
		Title:              title,
		SolicitationNumber: sol,
		PostedDate:         posted,
		ResponseDate:       date(raw, responsePaths),
		SetAside:           text(raw, setAsidePaths),
		NAICS:              text(raw, naicsPaths),
		Org:                text(raw, orgPaths),
		City:               text(raw, cityPaths),
		State:              text(raw, statePaths),
		Zip:                text(raw, zipPaths),
		URL:                text(raw, urlPaths),
		Description:        text(raw, descPaths),
		AwardAmount:        amount(raw, awardPaths),
	}

	if row.ID == "" {
		row.ID = synthesizeID(sol, posted, title)
	}
	return row
}

// synthesizeID builds a stable fallback key so a notice without any known
// identifier still gets a non-null primary key. Deterministic for one input.
func synthesizeID(sol string, posted *time.Time, title string) string {
	postedPart := ""
	if posted != nil {
		postedPart = posted.Format("2006-01-02")
	}
	r := []rune(title)
	if len(r) > 30 {
		r = r[:30]
	}
	return sol + "-" + postedPart + "-" + string(r)
}

func text(raw map[string]any, paths []string) string {
	for _, p := range paths {
		if s := scalarize(lookup(raw, p)); s != "" {
			return s
		}
	}
	return ""
}

func date(raw map[string]any, paths []string) *time.Time {
	for _, p := range paths {
		if s := scalarize(lookup(raw, p)); s != "" {
			return CoerceDate(s)
		}
	}
	return nil
}

func amount(raw map[string]any, paths []string) decimal.NullDecimal {
	for _, p := range paths {
		if d := decimalFromAny(lookup(raw, p)); d != nil {
			return decimal.NullDecimal{Decimal: *d, Valid: true}
		}
	}
	return decimal.NullDecimal{}
}

// CoerceDate accepts any string whose first 10 characters form an ISO
// YYYY-MM-DD prefix and returns the date at midnight UTC; everything else
// (including timestamps with a bad date part) coerces to nil.
func CoerceDate(v string) *time.Time {
	s := strings.TrimSpace(v)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	t = DateOnly(t)
	return &t
}

// DateOnly truncates a timestamp to its calendar date at midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// lookup walks a dot path through nested JSON objects; nil when any hop is
// missing or not an object.
func lookup(raw map[string]any, path string) any {
	cur := any(raw)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
		if cur == nil {
			return nil
		}
	}
	return cur
}

// scalarize renders any JSON value as text: strings pass through, numbers
// and bools format plainly, objects and arrays re-encode as JSON. Non-string
// identifiers and nested junk become storable text instead of erroring.
func scalarize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func decimalFromAny(v any) *decimal.Decimal {
	switch x := v.(type) {
	case float64:
		d := decimal.NewFromFloat(x)
		return &d
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return &d
		}
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return nil
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return &d
		}
	}
	return nil
}
