package llm

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/medimage2report/internal/ocr"
)

func TestBuildPrompt(t *testing.T) {
	content := ocr.ExtractedContent{
		Pages:    []ocr.PageText{{Number: 1, Text: "Patient: Jane Doe\nFindings: none"}, {Number: 2}},
		RawText:  "Patient: Jane Doe\nFindings: none",
		Language: "eng",
	}
	p := BuildPrompt(content, PromptOptions{Locales: []string{"de", "EN", "de", "fr"}, Filename: "scan.pdf"})

	for _, want := range []string{
		"Schema version: " + SchemaVersion,
		"```json",
		"short_text_de",
		"long_text_fr",
		"Patient: Jane Doe\nFindings: none",
		"pages: 2",
		"scan.pdf",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "short_text_en") {
		t.Errorf("english is the base language and needs no variant")
	}
	if BuildPrompt(content, PromptOptions{Locales: []string{"de"}}) != BuildPrompt(content, PromptOptions{Locales: []string{"de"}}) {
		t.Errorf("prompt building must be deterministic")
	}
}

func TestReportJSONSchemaCompiles(t *testing.T) {
	schema := ReportJSONSchema([]string{"de"})
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"short_text_de": "kurz", "modality": "MRI"}`)); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"quality": 0.9}`)); err == nil {
		t.Errorf("quality must be a string once sanitized")
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{}`)); err == nil {
		t.Errorf("empty object should be rejected")
	}
}

func TestPromptLocaleKeysParseBack(t *testing.T) {
	locales := []string{"deu", "pt-BR", "pt_br", "not a locale"}
	p := BuildPrompt(ocr.ExtractedContent{RawText: "MRI knee", Language: "eng"}, PromptOptions{Locales: locales})
	for _, want := range []string{"short_text_deu", "long_text_pt-br"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "not a locale") {
		t.Errorf("invalid locale must not reach the prompt")
	}

	got, err := ParseResponse(`{"modality": "MRI", "short_text_deu": "kurz", "long_text_pt-br": "longo"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Locales["deu"].ShortText != "kurz" || got.Locales["pt-br"].LongText != "longo" {
		t.Errorf("requested locale variants lost: %+v", got.Locales)
	}
	if err := ValidateJSONAgainstSchema(ReportJSONSchema(locales), []byte(`{"short_text_deu": "kurz", "long_text_pt-br": "longo"}`)); err != nil {
		t.Errorf("schema rejects requested locale keys: %v", err)
	}
}
