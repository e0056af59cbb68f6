package main

import (
	"fmt"
	"slices"

	"github.com/trackside/envstate/internal/envstate"
	"github.com/trackside/envstate/internal/worker"
)

type observerRegistry interface {
	Observers() []string
	HasObserver(name string) bool
}

// checkObserverOrder fails unless the env state is registered ahead of the
// recorder. Delivery is in registration order, so the recorder would
// otherwise snapshot the previous step.
func checkObserverOrder(r observerRegistry) error {
	for _, name := range []string{envstate.ObserverName, worker.ObserverName} {
		if !r.HasObserver(name) {
			return fmt.Errorf("observer %q not registered", name)
		}
	}
	names := r.Observers()
	if slices.Index(names, envstate.ObserverName) > slices.Index(names, worker.ObserverName) {
		return fmt.Errorf("observer %q must be registered before %q, got %v", envstate.ObserverName, worker.ObserverName, names)
	}
	return nil
}
