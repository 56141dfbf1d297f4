package openai

import (
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/medimage2report/constants"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // from common.LLMConfig.OpenAIAPIKey
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	api    *goopenai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(oc),
		logger: logger.With("provider", constants.ProviderOpenAI),
	}
}

func (c *Client) Name() string  { return constants.ProviderOpenAI }
func (c *Client) Model() string { return c.cfg.Model }
