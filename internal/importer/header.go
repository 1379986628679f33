package importer

import (
	"regexp"
	"strings"
)

// normalizeHeader prepares a raw CSV header cell for matching: BOM stripped,
// non-breaking spaces replaced, surrounding quotes removed, inner whitespace
// collapsed, lower-cased.
func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\uFEFF", "")
	h = strings.ReplaceAll(h, " ", " ")
	h = strings.TrimSpace(h)
	h = strings.Trim(h, `"`)
	h = strings.Join(strings.Fields(h), " ")
	return strings.ToLower(h)
}

// ResolveIndex maps a canonical field to a column index. Matching is exact
// first, then boundary-aware: a key must appear as a whole token delimited by
// string boundaries, spaces, underscores or hyphens, so "name" matches inside
// "parent_name" but never inside "parentname". Headers containing any of the
// exclude substrings are skipped entirely, which is how a search for "name"
// avoids binding to "parent_name" when a dedicated name column exists.
// Returns -1 when no header matches.
func ResolveIndex(headers []string, keys []string, exclude []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	excluded := func(h string) bool {
		for _, ex := range exclude {
			if strings.Contains(h, strings.ToLower(ex)) {
				return true
			}
		}
		return false
	}

	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		for i, h := range normalized {
			if excluded(h) {
				continue
			}
			if h == key {
				return i
			}
		}
	}

	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		re := regexp.MustCompile(`(^|[ _-])` + regexp.QuoteMeta(key) + `([ _-]|$)`)
		for i, h := range normalized {
			if excluded(h) {
				continue
			}
			if re.MatchString(h) {
				return i
			}
		}
	}

	return -1
}

// columns maps canonical field names to column indexes, resolved once per
// import run so row handling never touches raw header strings.
type columns map[string]int

func (c columns) has(field string) bool {
	idx, ok := c[field]
	return ok && idx >= 0
}

// get returns the trimmed raw value of a canonical field in a row, or ""
// when the column is absent or the row is short.
func (c columns) get(row []string, field string) string {
	idx, ok := c[field]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
