// Package strategies contains the concrete trading strategies run against the
// simulation engine, plus the name registry the application layer uses to
// construct them.
package strategies

import (
	"fmt"
	"sort"

	"gridbacktest/services/engine"
)

// Constructor builds a fresh strategy instance. One instance per run.
type Constructor func() engine.Strategy

var registry = map[string]Constructor{}

// Register adds a named constructor. Called from init in each strategy file;
// the table is fixed once the process is up.
func Register(name string, fn Constructor) {
	registry[name] = fn
}

// New constructs a registered strategy by name.
func New(name string) (engine.Strategy, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategies: unknown strategy %q (have %v)", name, Names())
	}
	return fn(), nil
}

// Names lists registered strategies in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
