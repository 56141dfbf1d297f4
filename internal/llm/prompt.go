package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/medimage2report/internal/ocr"
)

// BuildPrompt composes the single instruction sent to the model: role, schema
// version and JSON Schema, field semantics, language rules and the extracted text.
func BuildPrompt(content ocr.ExtractedContent, opts PromptOptions) string {
	locales := requestedLocales(opts.Locales)

	var b strings.Builder
	b.WriteString("You are a radiology expert. The text below was extracted by OCR from an AI-assisted medical image analysis report.\n")
	b.WriteString("Analyze the radiological findings and return a single JSON object.\n\n")

	fmt.Fprintf(&b, "Schema version: %s\n", SchemaVersion)
	b.WriteString("JSON Schema:\n")
	b.WriteString(mustJSON(ReportJSONSchema(locales)))
	b.WriteString("\n\nFields:\n")
	b.WriteString("- company: manufacturer or vendor of the AI analysis software.\n")
	b.WriteString("- sequences: array of acquisition sequences in the order they appear (e.g. [\"T1\", \"T2\", \"FLAIR\"]). Keep repeats.\n")
	b.WriteString("- method: analysis method or algorithm used.\n")
	b.WriteString("- region: examined body region.\n")
	b.WriteString("- modality: imaging modality (e.g. MRI, CT, X-Ray).\n")
	b.WriteString("- short_text: one or two sentence summary of the result.\n")
	b.WriteString("- long_text: full summary of the findings.\n")
	b.WriteString("- quality: image or analysis quality exactly as stated in the report, as a string.\n")
	b.WriteString("- findings: optional array of individual findings with finding_type, location, value, unit and significance.\n\n")

	b.WriteString("Language: write short_text and long_text in English.")
	for _, l := range locales {
		fmt.Fprintf(&b, " Also provide short_text_%s and long_text_%s written in language %q.", l, l, l)
	}
	b.WriteString("\n")
	b.WriteString("Omit any field that is not present in the text. Never output null and never invent values.\n")
	b.WriteString("Answer with the JSON object inside a ```json fenced block and nothing else.\n\n")

	if opts.Filename != "" {
		fmt.Fprintf(&b, "Source file: %s\n", opts.Filename)
	}
	fmt.Fprintf(&b, "OCR language: %s, pages: %d\n", content.Language, len(content.Pages))
	b.WriteString("Extracted text:\n")
	b.WriteString(content.RawText)
	b.WriteString("\n")
	return b.String()
}

// requestedLocales lowercases, drops English, duplicates and anything the parser
// would not accept back as a locale key, keeps order.
func requestedLocales(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range in {
		l = normalizeLocale(l)
		if l == "" || l == "en" || seen[l] || !reLocale.MatchString(l) {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// normalizeLocale lowercases a locale and uses "-" as the subtag separator.
func normalizeLocale(l string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(l)), "_", "-")
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
