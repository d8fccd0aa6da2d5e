package breaker

import "sync"

// Set manages one Breaker per tool name, created lazily on first invocation
// and living for the process lifetime. Per-tool configs override the default.
type Set struct {
	mu           sync.RWMutex
	breakers     map[string]*Breaker
	defaultCfg   Config
	toolCfgs     map[string]Config
	onTransition TransitionFunc
}

// SetOptions configures a Set.
type SetOptions struct {
	// Default applies to tools without a specific override.
	Default Config
	// PerTool overrides the default config for named tools (e.g. a longer
	// recovery timeout for a flaky but slow-recovering dependency).
	PerTool map[string]Config
	// OnTransition observes every breaker's state changes.
	OnTransition TransitionFunc
}

// NewSet constructs an empty breaker set.
func NewSet(optFns ...func(o *SetOptions)) *Set {
	opts := SetOptions{Default: DefaultConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Set{
		breakers:     make(map[string]*Breaker),
		defaultCfg:   opts.Default,
		toolCfgs:     opts.PerTool,
		onTransition: opts.OnTransition,
	}
}

// Get returns the breaker for tool, creating it on first use.
func (s *Set) Get(tool string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[tool]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[tool]; ok {
		return b
	}
	cfg := s.defaultCfg
	if override, ok := s.toolCfgs[tool]; ok {
		cfg = override
	}
	b = New(tool, cfg, s.onTransition)
	s.breakers[tool] = b
	return b
}

// Reset resets the named tool's breaker if it exists.
func (s *Set) Reset(tool string) {
	s.mu.RLock()
	b, ok := s.breakers[tool]
	s.mu.RUnlock()
	if ok {
		b.Reset()
	}
}

// Snapshots returns the health stats of every breaker created so far.
func (s *Set) Snapshots() map[string]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Stats, len(s.breakers))
	for tool, b := range s.breakers {
		out[tool] = b.Snapshot()
	}
	return out
}
