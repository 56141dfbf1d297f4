package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
)

type Config struct {
	BaseURL     string // default http://localhost:11434
	Model       string // default "qwen2.5:1.5b"
	Temperature float32
	Timeout     time.Duration
}

// Client implements llm.Provider against a local Ollama server.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:1.5b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("provider", constants.ProviderOllama),
	}
}

func (c *Client) Name() string  { return constants.ProviderOllama }
func (c *Client) Model() string { return c.cfg.Model }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: map[string]any{"temperature": c.cfg.Temperature},
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	raw, status, err := llm.SendJSON(ctx, c.http, url, body, nil, c.logger)
	if err != nil {
		if msg := errorMessage(raw); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		pe := llm.FoldError(constants.ProviderOllama, status, err)
		c.logger.Error("llm.ollama.error", "model", c.cfg.Model, "reason", pe.Reason, "status", status, "error", err)
		return "", pe
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &common.ProviderError{Provider: constants.ProviderOllama, Reason: common.ProviderUnavailable, Status: status, Cause: fmt.Errorf("decode envelope: %w", err)}
	}
	if out.Error != "" {
		return "", &common.ProviderError{Provider: constants.ProviderOllama, Reason: common.ProviderUnavailable, Status: status, Cause: errors.New(out.Error)}
	}
	return strings.TrimSpace(out.Response), nil
}

func errorMessage(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	return e.Error
}
