package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
)

type Config struct {
	ProjectID   string
	Location    string // e.g. "europe-west4"
	Model       string // default "gemini-1.5-pro"
	Temperature float32
	// CredentialsFile overrides application default credentials when set.
	CredentialsFile string
}

// generator is the part of *genai.GenerativeModel we call.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Provider on Vertex AI Gemini.
type Client struct {
	model  generator
	name   string
	base   *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("gemini: project and location cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	m := base.GenerativeModel(cfg.Model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text("You convert OCR text of radiology AI reports into JSON. Return only JSON that matches the provided schema.")},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(cfg.Temperature),
	}
	return &Client{
		model:  m,
		name:   cfg.Model,
		base:   base,
		logger: logger.With("provider", constants.ProviderGemini),
	}, nil
}

func (c *Client) Name() string  { return constants.ProviderGemini }
func (c *Client) Model() string { return c.name }

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		pe := foldError(err)
		c.logger.Error("llm.gemini.error", "model", c.name, "reason", pe.Reason, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", pe
	}
	txt := responseText(resp)
	if txt == "" {
		c.logger.Error("llm.gemini.empty", "model", c.name, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.ProviderError{
			Provider: constants.ProviderGemini,
			Reason:   common.ProviderUnavailable,
			Cause:    errors.New("no text candidates in response"),
		}
	}
	c.logger.Debug("llm.gemini.ok", "model", c.name, "chars", len(txt), "elapsed_ms", time.Since(start).Milliseconds())
	return txt, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func foldError(err error) *common.ProviderError {
	st, ok := status.FromError(err)
	if !ok {
		return llm.FoldError(constants.ProviderGemini, 0, err)
	}
	pe := &common.ProviderError{Provider: constants.ProviderGemini, Cause: err}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		pe.Reason = common.ProviderAuth
	case codes.ResourceExhausted:
		pe.Reason = common.ProviderQuota
	case codes.DeadlineExceeded:
		pe.Reason = common.ProviderTimeout
	case codes.Canceled:
		pe.Reason = common.ProviderNetwork
	default:
		pe.Reason = common.ProviderUnavailable
	}
	return pe
}
