package common

import (
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/medimage2report/constants"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:test.db"},
		Server:   ServerConfig{GRPCAddr: ":0"},
		OCR:      OCRConfig{Engine: constants.EngineTesseract},
		LLM: LLMConfig{
			Provider:  constants.ProviderOllama,
			OllamaURL: "http://localhost:11434",
			Timeout:   time.Minute,
			Locales:   []string{"en", "de"},
		},
	}
}

func TestValidateReportLocales(t *testing.T) {
	cases := []struct {
		locales []string
		ok      bool
	}{
		{[]string{"en", "de"}, true},
		{[]string{"deu", "pt-BR", "pt_br"}, true},
		{[]string{"de", "german"}, false},
		{[]string{"d"}, false},
		{[]string{"pt-"}, false},
	}
	for _, tc := range cases {
		c := validConfig()
		c.LLM.Locales = tc.locales
		err := c.Validate()
		if tc.ok && err != nil {
			t.Errorf("locales %v rejected: %v", tc.locales, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("locales %v: err = %v, want ErrInvalidInput", tc.locales, err)
		}
	}
}

func TestValidateAcceptsLowDPI(t *testing.T) {
	c := validConfig()
	c.OCR.DPI = 150
	if err := c.Validate(); err != nil {
		t.Errorf("low DPI is raised by the renderer, config must accept it: %v", err)
	}
}
