package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/entity"
)

// reFence captures a fenced block whose opening and closing fences sit on their own
// lines. Greedy, so inline ``` inside JSON strings never closes the block.
var reFence = regexp.MustCompile("(?s)(?:^|\n)```[a-zA-Z]*[ \t]*\r?\n(.*)\r?\n[ \t]*```[ \t]*(?:\r?\n|$)")

// StripFence returns the JSON payload of a model answer. Text that already is valid
// JSON is returned as is; otherwise the body of a fenced block is used when present,
// and finally the outermost {...} span, which skips leading or trailing prose.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return s
	}
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
		if json.Valid([]byte(s)) {
			return s
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// ParseResponse decodes, sanitizes and validates a raw model answer. Any failure
// is a *common.MalformedResponseError carrying raw.
func ParseResponse(raw string) (ReportFields, error) {
	f, _, err := parseResponse(raw)
	return f, err
}

func parseResponse(raw string) (ReportFields, []string, error) {
	malformed := func(cause error) error {
		return &common.MalformedResponseError{Raw: raw, Cause: cause}
	}

	body := StripFence(raw)
	if body == "" {
		return ReportFields{}, nil, malformed(errors.New("empty response"))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return ReportFields{}, nil, malformed(err)
	}
	if m == nil {
		return ReportFields{}, nil, malformed(errors.New("response is not a JSON object"))
	}

	changed := SanitizeReport(m)
	if err := validateResponse(m); err != nil {
		return ReportFields{}, changed, malformed(err)
	}
	return toFields(m), changed, nil
}

func toFields(m map[string]any) ReportFields {
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	f := ReportFields{
		Company:   str("company"),
		Method:    str("method"),
		Region:    str("region"),
		Modality:  str("modality"),
		ShortText: str("short_text"),
		LongText:  str("long_text"),
		Quality:   str("quality"),
	}
	if seq, ok := m["sequences"].([]any); ok {
		for _, s := range seq {
			f.Sequences = append(f.Sequences, s.(string))
		}
	}
	if fs, ok := m["findings"].([]any); ok {
		for _, e := range fs {
			obj := e.(map[string]any)
			get := func(k string) string {
				s, _ := obj[k].(string)
				return s
			}
			f.Findings = append(f.Findings, FindingFields{
				FindingType:  get("finding_type"),
				Location:     get("location"),
				Value:        get("value"),
				Unit:         get("unit"),
				Significance: get("significance"),
			})
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reLocaleKey.MatchString(k) {
			continue
		}
		var locale string
		long := strings.HasPrefix(k, "long_text_")
		if long {
			locale = strings.TrimPrefix(k, "long_text_")
		} else {
			locale = strings.TrimPrefix(k, "short_text_")
		}
		if f.Locales == nil {
			f.Locales = make(map[string]entity.LocalizedText)
		}
		lt := f.Locales[locale]
		if long {
			lt.LongText = str(k)
		} else {
			lt.ShortText = str(k)
		}
		f.Locales[locale] = lt
	}
	return f
}
