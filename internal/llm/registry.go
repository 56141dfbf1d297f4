package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

// Registry selects a provider by name.
type Registry struct {
	providers map[string]Provider
	def       string
}

// NewRegistry registers ps; def names the provider used for an empty selector.
func NewRegistry(def string, ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps)), def: def}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, &common.ProviderError{
			Provider: name,
			Reason:   common.ProviderUnavailable,
			Cause:    fmt.Errorf("no provider registered as %q (have %v)", name, r.Names()),
		}
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoker runs one bounded provider call and parses the answer.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

func NewInvoker(registry *Registry, timeout time.Duration, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Invoker{registry: registry, timeout: timeout, logger: logger}
}

// Invoke sends prompt to the named provider. Errors are *common.ProviderError,
// *common.MalformedResponseError, or the caller's context error when ctx ends first.
func (iv *Invoker) Invoke(ctx context.Context, providerName, prompt string) (ParsedReport, error) {
	p, err := iv.registry.Get(providerName)
	if err != nil {
		iv.logger.Error("llm.invoke.unknown_provider", "provider", providerName, "error", err)
		return ParsedReport{}, err
	}
	name := p.Name()
	var model string
	if m, ok := p.(modeler); ok {
		model = m.Model()
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	iv.logger.Info("llm.invoke.start", "provider", name, "model", model, "prompt_chars", len(prompt))
	raw, err := p.Generate(callCtx, prompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			iv.logger.Warn("llm.invoke.canceled", "provider", name, "elapsed_ms", elapsed)
			return ParsedReport{}, fmt.Errorf("llm invoke: %w", ctx.Err())
		}
		pe := FoldError(name, 0, err)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			pe.Reason = common.ProviderTimeout
		}
		iv.logger.Error("llm.invoke.failed", "provider", name, "reason", pe.Reason, "status", pe.Status, "error", err, "elapsed_ms", elapsed)
		return ParsedReport{}, pe
	}

	fields, changed, err := parseResponse(raw)
	if err != nil {
		var mre *common.MalformedResponseError
		if errors.As(err, &mre) {
			mre.Provider = name
		}
		iv.logger.Error("llm.parse.failed", "provider", name, "error", err, "raw", raw, "elapsed_ms", elapsed)
		return ParsedReport{}, err
	}
	if len(changed) > 0 {
		iv.logger.Warn("llm.parse.sanitized", "provider", name, "changed", changed)
	}
	iv.logger.Info("llm.invoke.ok",
		"provider", name,
		"model", model,
		"modality", fields.Modality,
		"sequences", len(fields.Sequences),
		"findings", len(fields.Findings),
		"elapsed_ms", elapsed,
	)
	return ParsedReport{Fields: fields, Raw: raw, Provider: name, Model: model}, nil
}
