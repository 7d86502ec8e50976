package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// FailoverConfig mirrors the teacher's internal/agent/failover.go
// FailoverConfig: a circuit breaker per provider (there is no separate
// retry budget), trimmed to the fields this blocking client needs (no
// rate-limit/server-error error-string sniffing here — providers return
// Go errors, classified generically as "try the next provider").
type FailoverConfig struct {
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

type providerState struct {
	failures      int
	circuitOpen   bool
	circuitOpenAt time.Time
}

func (s *providerState) available(cfg FailoverConfig) bool {
	if !s.circuitOpen {
		return true
	}
	return time.Since(s.circuitOpenAt) > cfg.CircuitBreakerTimeout
}

// Failover tries each configured provider in order, generalizing the
// teacher's FailoverOrchestrator.Complete to the structured_call[T]
// world: on a provider error it opens that provider's circuit after
// CircuitBreakerThreshold consecutive failures and falls through to the
// next provider, rather than failing over only on a whitelisted set of
// HTTP error classes.
type Failover struct {
	mu        sync.Mutex
	providers []Provider
	states    map[string]*providerState
	cfg       FailoverConfig
	log       *slog.Logger
}

func NewFailover(cfg FailoverConfig, log *slog.Logger, providers ...Provider) *Failover {
	if log == nil {
		log = slog.Default()
	}
	return &Failover{
		providers: providers,
		states:    make(map[string]*providerState),
		cfg:       cfg,
		log:       log,
	}
}

func (f *Failover) Name() string { return "failover" }

func (f *Failover) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error
	for _, p := range f.providers {
		if !f.stateFor(p.Name()).available(f.cfg) {
			continue
		}
		out, err := p.Complete(ctx, req)
		if err == nil {
			f.recordSuccess(p.Name())
			return out, nil
		}
		f.log.Warn("llm: provider call failed, trying next", "provider", p.Name(), "error", err)
		f.recordFailure(p.Name())
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("llm: no provider available (all circuits open)")
	}
	return "", lastErr
}

func (f *Failover) stateFor(name string) *providerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[name]
	if !ok {
		s = &providerState{}
		f.states[name] = s
	}
	return s
}

func (f *Failover) recordSuccess(name string) {
	s := f.stateFor(name)
	f.mu.Lock()
	s.failures = 0
	s.circuitOpen = false
	f.mu.Unlock()
}

func (f *Failover) recordFailure(name string) {
	s := f.stateFor(name)
	f.mu.Lock()
	s.failures++
	if s.failures >= f.cfg.CircuitBreakerThreshold {
		s.circuitOpen = true
		s.circuitOpenAt = time.Now()
	}
	f.mu.Unlock()
}
