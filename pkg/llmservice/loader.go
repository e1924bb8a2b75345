package llmservice

import "fmt"

// New is the universal entry point for instantiating an LLM Client from
// configuration. It looks up the registered ProviderFactory for cfg.Type
// and delegates construction to it.
func New(cfg ProviderConfig) (Client, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("llmservice: missing provider type")
	}

	factory, ok := GetProviderFactory(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("llmservice: unknown provider type %q", cfg.Type)
	}

	client, err := factory.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("llmservice: create %s client: %w", cfg.Type, err)
	}
	return client, nil
}
