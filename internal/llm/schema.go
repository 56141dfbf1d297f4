package llm

import "github.com/joseph-ayodele/medimage2report/constants"

// SchemaVersion is declared in every prompt and stored with each report.
const SchemaVersion = "medreport.v2"

// localeKeyPattern matches short_text_<locale> / long_text_<locale> variants.
const localeKeyPattern = `^(short|long)_text_` + constants.LocalePattern + `$`

// ReportJSONSchema returns the JSON Schema (draft 2020-12 subset) for a report.
// Each requested locale gets explicit short/long text properties; other locale
// variants are still accepted through patternProperties.
func ReportJSONSchema(locales []string) map[string]any {
	props := map[string]any{
		"company":    textProp(),
		"sequences":  map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}},
		"method":     textProp(),
		"region":     textProp(),
		"modality":   textProp(),
		"short_text": textProp(),
		"long_text":  textProp(),
		"quality":    textProp(),
		"findings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"minProperties":        1,
				"properties": map[string]any{
					"finding_type": textProp(),
					"location":     textProp(),
					"value":        textProp(),
					"unit":         textProp(),
					"significance": textProp(),
				},
			},
		},
	}
	for _, l := range requestedLocales(locales) {
		props["short_text_"+l] = textProp()
		props["long_text_"+l] = textProp()
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"minProperties":        1,
		"properties":           props,
		"patternProperties": map[string]any{
			localeKeyPattern: textProp(),
		},
	}
}

func textProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}
