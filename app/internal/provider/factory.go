package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	lru "github.com/hashicorp/golang-lru"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

// Lookup resolves a provider by name.
type Lookup interface {
	Get(ctx context.Context, name string) (*entities.Provider, error)
}

// Factory builds callers for provider rows and caches them per configuration.
type Factory struct {
	lookup    Lookup
	outcaller Outcaller
	timeout   time.Duration
	cache     *lru.Cache
}

// NewFactory creates a Factory. HuggingFace providers send their requests
// through outcaller; OpenAI-compatible providers use their own HTTP client.
func NewFactory(lookup Lookup, outcaller Outcaller, timeout time.Duration) *Factory {
	cache, err := lru.New(64)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Factory{
		lookup:    lookup,
		outcaller: outcaller,
		timeout:   timeout,
		cache:     cache,
	}
}

// Caller returns the caller for the provider called name.
func (f *Factory) Caller(ctx context.Context, name string) (Caller, error) {
	p, err := f.lookup.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.Build(ctx, p)
}

// Build returns a caller for p, reusing a cached one when nothing that
// affects the wire call has changed.
func (f *Factory) Build(ctx context.Context, p *entities.Provider) (Caller, error) {
	key := cacheKey(p)
	if c, ok := f.cache.Get(key); ok {
		return c.(Caller), nil
	}

	var (
		c   Caller
		err error
	)
	switch p.Kind {
	case entities.KindHuggingFace:
		url := p.BaseURL
		if url == "" {
			url = huggingFaceInferenceURL + p.Model
		}
		c = NewHuggingFace(f.outcaller, url, p.APIKey, p.MaxTokens, p.Temperature, f.timeout)
	case entities.KindOpenAI, "":
		c, err = newOpenAI(ctx, p, f.timeout)
	default:
		return nil, fmt.Errorf("provider %s has unsupported kind %q", p.Name, p.Kind)
	}
	if err != nil {
		return nil, err
	}

	f.cache.Add(key, c)
	klog.V(6).Infof("provider caller built: name=%s, kind=%s, model=%s", p.Name, p.Kind, p.Model)
	return c, nil
}

func newOpenAI(ctx context.Context, p *entities.Provider, timeout time.Duration) (Caller, error) {
	config := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		Model:   p.Model,
		Timeout: timeout,
	}
	if p.BaseURL != "" {
		config.BaseURL = p.BaseURL
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		config.MaxTokens = &maxTokens
	}
	temperature := p.Temperature
	config.Temperature = &temperature

	chatModel, err := openai.NewChatModel(ctx, config)
	if err != nil {
		klog.Errorf("failed to create chat model for %s: %v", p.Name, err)
		return nil, err
	}
	return chatModel, nil
}

func cacheKey(p *entities.Provider) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%g", p.Name, p.Kind, p.BaseURL, p.Model, p.APIKey, p.MaxTokens, p.Temperature)
}
