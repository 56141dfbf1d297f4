package constants

// LLM provider selectors.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// OCR engine selectors.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

const (
	// DefaultDPI is the rasterization resolution for OCR; MinDPI is the floor.
	DefaultDPI = 400
	MinDPI     = 300

	DefaultOCRLanguage = "eng"

	// DefaultContrast is the fixed contrast multiplier applied before OCR.
	DefaultContrast = 2.0

	// PageBoundary separates page texts in the concatenated document text.
	PageBoundary = "\n\f\n"

	// SequenceDelimiter joins imaging sequence names for storage.
	SequenceDelimiter = ", "

	// LocalePattern matches a lowercased report locale: an ISO-639 code with an
	// optional region or script subtag ("de", "deu", "pt-br").
	LocalePattern = `[a-z]{2,3}(-[a-z0-9]+)?`
)
