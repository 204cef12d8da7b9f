package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/xquad-eval/internal/config"
)

// NewRegistryFromConfig builds one backend per configured provider and
// registers each under its canonical name, so alias resolution ("anthropic"
// is "claude") happens once at registration time.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		switch normalizeBackendName(name) {
		case "":
			continue
		case "claude":
			r.Register(NewClaudeBackend(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			b := NewOpenAIBackend(pcfg.APIKey, pcfg.BaseURL, pcfg.Model)
			if v := strings.TrimSpace(pcfg.CompletionModel); v != "" {
				b = b.WithCompletionModel(v)
			}
			r.Register(b)
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

// FromConfig resolves the named backend through a config-built registry. An
// empty provider name falls back to the configured default; an empty model
// falls back to the provider's configured model. Returns the backend and the
// resolved model name for bookkeeping.
func FromConfig(cfg *config.Config, providerName, model string) (Backend, string, error) {
	if cfg == nil {
		return nil, "", errors.New("llm: missing config")
	}

	name := normalizeBackendName(providerName)
	if name == "" {
		name = normalizeBackendName(cfg.LLM.DefaultProvider)
	}
	if name == "" {
		return nil, "", errors.New("llm: missing provider")
	}

	m := strings.TrimSpace(model)
	eff := cfg
	if m != "" {
		// Rebuild the provider table with the override applied so the
		// registry constructs the selected backend against it.
		providers := make(map[string]config.ProviderConfig, len(cfg.LLM.Providers))
		for key, pcfg := range cfg.LLM.Providers {
			if normalizeBackendName(key) == name {
				pcfg.Model = m
			}
			providers[key] = pcfg
		}
		clone := *cfg
		clone.LLM.Providers = providers
		eff = &clone
	}

	reg, err := NewRegistryFromConfig(eff)
	if err != nil {
		return nil, "", err
	}

	b, ok := reg.Get(name)
	if !ok {
		return nil, "", fmt.Errorf("llm: provider %q not configured (available: %s)", name, strings.Join(reg.Names(), ", "))
	}

	if m == "" {
		for key, pcfg := range cfg.LLM.Providers {
			if normalizeBackendName(key) == name {
				m = strings.TrimSpace(pcfg.Model)
				break
			}
		}
	}
	if m == "" {
		m = "default"
	}
	return b, m, nil
}

func normalizeBackendName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "anthropic":
		return "claude"
	default:
		return name
	}
}
