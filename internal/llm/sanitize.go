package llm

import (
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/medimage2report/constants"
)

var (
	reLocaleKey = regexp.MustCompile(localeKeyPattern)
	reLocale    = regexp.MustCompile(`^` + constants.LocalePattern + `$`)
)

var textFields = []string{"company", "method", "region", "modality", "short_text", "long_text", "quality"}

var findingFields = []string{"finding_type", "location", "value", "unit", "significance"}

// SanitizeReport normalizes a decoded response in place so that it can pass the
// strict schema:
// - numbers in text fields (quality in particular) become strings
// - null / empty optionals are dropped
// - sequences given as one delimited string become a list
// - unknown keys are removed
//
// It returns what was dropped or rewritten, for logging.
func SanitizeReport(m map[string]any) []string {
	var changed []string

	for k := range maps.Clone(m) {
		if slices.Contains(textFields, k) || reLocaleKey.MatchString(k) {
			if s, ok := coerceText(m[k]); ok {
				if _, wasString := m[k].(string); !wasString {
					changed = append(changed, k+"(coerced)")
				}
				m[k] = s
			} else {
				delete(m, k)
				changed = append(changed, k+"(empty)")
			}
			continue
		}
		switch k {
		case "sequences":
			if seq := coerceList(m[k]); len(seq) > 0 {
				m[k] = seq
			} else {
				delete(m, k)
				changed = append(changed, k+"(empty)")
			}
		case "findings":
			if fs := coerceFindings(m[k]); len(fs) > 0 {
				m[k] = fs
			} else {
				delete(m, k)
				changed = append(changed, k+"(empty)")
			}
		default:
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}
	slices.Sort(changed)
	return changed
}

// coerceText turns strings and numbers into a trimmed string. ok is false for
// values that should be dropped.
func coerceText(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	if s == "" || strings.EqualFold(s, "null") {
		return "", false
	}
	return s, true
}

// coerceList accepts a JSON array or a comma separated string. Order and
// duplicates are preserved.
func coerceList(v any) []any {
	var out []any
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := coerceText(e); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func coerceFindings(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []any
	for _, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		clean := make(map[string]any, len(findingFields))
		for _, k := range findingFields {
			if s, ok := coerceText(obj[k]); ok {
				clean[k] = s
			}
		}
		if len(clean) > 0 {
			out = append(out, clean)
		}
	}
	return out
}
