package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Registry manages hooks and dispatches events to them
type Registry struct {
	mu        sync.RWMutex
	hooks     map[EventType][]Hook
	timeouts  map[string]time.Duration
	factories map[string]Factory

	maxConcurrency int
}

// NewRegistry creates a registry with the built-in script and webhook factories
func NewRegistry() *Registry {
	r := &Registry{
		hooks:          make(map[EventType][]Hook),
		timeouts:       make(map[string]time.Duration),
		factories:      make(map[string]Factory),
		maxConcurrency: 10,
	}
	r.RegisterFactory("script", NewScriptHook)
	r.RegisterFactory("webhook", NewWebhookHook)
	return r
}

// RegisterFactory registers a hook factory
func (r *Registry) RegisterFactory(hookType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hookType] = factory
}

// Register adds a hook for each event type it handles
func (r *Registry) Register(hook Hook, timeout time.Duration) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range hook.EventTypes() {
		r.hooks[eventType] = append(r.hooks[eventType], hook)
	}
	r.timeouts[hook.Name()] = timeout
	return nil
}

// Load creates and registers every enabled hook in cfgs
func (r *Registry) Load(cfgs []Config) error {
	for i := range cfgs {
		cfg := &cfgs[i]
		if !cfg.Enabled {
			continue
		}

		r.mu.RLock()
		factory, exists := r.factories[cfg.Type]
		r.mu.RUnlock()
		if !exists {
			return fmt.Errorf("unknown hook type: %s", cfg.Type)
		}

		hook, err := factory(cfg)
		if err != nil {
			return fmt.Errorf("failed to create hook %s: %w", cfg.Name, err)
		}
		if err := r.Register(hook, cfg.Timeout); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of distinct registered hooks
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timeouts)
}

// Trigger runs every hook registered for the event concurrently, bounded by
// the registry's concurrency limit, and waits for all of them.
func (r *Registry) Trigger(ctx context.Context, event *Event) []Result {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks[event.Type]...)
	r.mu.RUnlock()

	if len(hooks) == 0 {
		return nil
	}

	results := make([]Result, len(hooks))
	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for i, hook := range hooks {
		wg.Add(1)
		go func(i int, h Hook) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.execute(ctx, h, event)
		}(i, hook)
	}

	wg.Wait()
	return results
}

func (r *Registry) execute(ctx context.Context, hook Hook, event *Event) Result {
	r.mu.RLock()
	timeout := r.timeouts[hook.Name()]
	r.mu.RUnlock()

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := hook.Execute(hookCtx, event)
	return Result{
		HookName:  hook.Name(),
		EventType: event.Type,
		Err:       err,
		Duration:  time.Since(start),
	}
}
