package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
)

const systemPrompt = "You convert OCR text of radiology AI reports into JSON. Return only JSON that matches the provided schema."

// Generate implements llm.Provider with a single JSON-mode chat completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		pe := foldError(err)
		c.logger.Error("llm.openai.error",
			"model", c.cfg.Model,
			"reason", pe.Reason,
			"status", pe.Status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", pe
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "model", c.cfg.Model, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.ProviderError{
			Provider: constants.ProviderOpenAI,
			Reason:   common.ProviderUnavailable,
			Cause:    errors.New("no choices in response"),
		}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("llm.openai.ok",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func foldError(err error) *common.ProviderError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.FoldError(constants.ProviderOpenAI, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llm.FoldError(constants.ProviderOpenAI, reqErr.HTTPStatusCode, err)
	}
	return llm.FoldError(constants.ProviderOpenAI, 0, err)
}
