package state

import (
	"fmt"
	"log/slog"

	"github.com/trackside/envstate/internal/telemetry"
)

// Composite holds sub-states by key. The first state added under a key wins.
// Composite is not safe for concurrent use.
type Composite struct {
	order  []Key
	states map[Key]State
	logger *slog.Logger
}

// NewComposite creates an empty container. A nil logger uses slog.Default().
func NewComposite(logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{
		states: make(map[Key]State),
		logger: logger,
	}
}

// Add stores s under key unless the key is already taken.
func (c *Composite) Add(key Key, s State) {
	if _, ok := c.states[key]; ok {
		c.logger.Info("state already added, ignore", "key", key)
		return
	}
	c.order = append(c.order, key)
	c.states[key] = s
}

// Get returns the state stored under key.
func (c *Composite) Get(key Key) (State, error) {
	s, ok := c.states[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, key)
	}
	return s, nil
}

// Update forwards b to every sub-state, stopping at the first error.
func (c *Composite) Update(b *telemetry.Bundle) error {
	for _, key := range c.order {
		if err := c.states[key].Update(b); err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
	}
	return nil
}

// ToDict merges the sub-state maps. Sub-states are expected to export
// disjoint keys; on a clash the later-added state wins.
func (c *Composite) ToDict() map[string]any {
	out := make(map[string]any)
	for _, key := range c.order {
		for k, v := range c.states[key].ToDict() {
			out[k] = v
		}
	}
	return out
}
