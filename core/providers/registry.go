package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry manages provider instances and the default used for completions
type Registry struct {
	mu sync.RWMutex

	providers map[ProviderType]Provider
	default_  ProviderType
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderType]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(providerType ProviderType, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider %s is nil", providerType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[providerType] = provider

	// Set as default if first provider
	if len(r.providers) == 1 {
		r.default_ = providerType
	}

	return nil
}

// RegisterGroq creates and registers a Groq provider
func (r *Registry) RegisterGroq(config OpenAIConfig) error {
	provider, err := NewGroqProvider(config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeGroq, provider)
}

// RegisterOpenAI creates and registers an OpenAI provider
func (r *Registry) RegisterOpenAI(config OpenAIConfig) error {
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeOpenAI, provider)
}

// RegisterAnthropic creates and registers an Anthropic provider
func (r *Registry) RegisterAnthropic(config AnthropicConfig) error {
	provider, err := NewAnthropicProvider(config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeAnthropic, provider)
}

// RegisterGoogle creates and registers a Gemini provider
func (r *Registry) RegisterGoogle(ctx context.Context, config GoogleConfig) error {
	provider, err := NewGoogleProvider(ctx, config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeGoogle, provider)
}

// Get returns a provider by type
func (r *Registry) Get(providerType ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", providerType)
	}
	return provider, nil
}

// Default returns the default provider
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.default_ == "" {
		return nil, fmt.Errorf("no default provider set")
	}
	return r.providers[r.default_], nil
}

// SetDefault sets the default provider
func (r *Registry) SetDefault(providerType ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[providerType]; !ok {
		return fmt.Errorf("provider not registered: %s", providerType)
	}
	r.default_ = providerType
	return nil
}

// Available returns all registered provider types in name order
func (r *Registry) Available() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Has checks if a provider type is registered
func (r *Registry) Has(providerType ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[providerType]
	return ok
}

// embeddingTypes lists providers with an embeddings endpoint. Groq speaks
// the OpenAI protocol but serves no embedding models.
var embeddingTypes = []ProviderType{ProviderTypeOpenAI}

// Embedder returns a registered provider that can embed text.
func (r *Registry) Embedder() (Embedder, bool) {
	for _, t := range embeddingTypes {
		p, err := r.Get(t)
		if err != nil {
			continue
		}
		if e, ok := p.(Embedder); ok {
			return e, true
		}
	}
	return nil, false
}
