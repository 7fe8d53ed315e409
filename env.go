package nativemodule

import (
	"sort"
	"sync"
)

// acceptance tracks which modules were compiled with an accepted code cache
// and which were compiled from source.
type acceptance struct {
	mu      sync.Mutex
	with    map[string]bool
	without map[string]bool
}

func newAcceptance() *acceptance {
	return &acceptance{with: map[string]bool{}, without: map[string]bool{}}
}

func (a *acceptance) record(id string, accepted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if accepted {
		a.with[id] = true
	} else {
		a.without[id] = true
	}
}

func (a *acceptance) lists() (with, without []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.with), sortedKeys(a.without)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environment is the state of a fully initialized caller. Bootstrap code
// that runs before an environment exists passes NoEnv instead.
type Environment struct {
	name  string
	stats *acceptance
}

// NewEnvironment returns an Environment with the given diagnostic name.
func NewEnvironment(name string) *Environment {
	return &Environment{name: name, stats: newAcceptance()}
}

// Name returns the environment's diagnostic name.
func (e *Environment) Name() string {
	return e.name
}

// CompiledWithCache returns the modules this environment compiled from an
// accepted code cache.
func (e *Environment) CompiledWithCache() []string {
	with, _ := e.stats.lists()
	return with
}

// CompiledWithoutCache returns the modules this environment compiled from
// source.
func (e *Environment) CompiledWithoutCache() []string {
	_, without := e.stats.lists()
	return without
}

// OptionalEnv is either an Environment or nothing.
type OptionalEnv struct {
	env *Environment
}

// NoEnv is the absent environment.
func NoEnv() OptionalEnv {
	return OptionalEnv{}
}

// SomeEnv wraps env. A nil env is the same as NoEnv.
func SomeEnv(env *Environment) OptionalEnv {
	return OptionalEnv{env: env}
}

// Get returns the environment and whether one is present.
func (o OptionalEnv) Get() (*Environment, bool) {
	return o.env, o.env != nil
}
