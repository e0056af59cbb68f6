package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/trackside/envstate/pkg/core"
)

// Kind is the type of a simulator event.
type Kind int

const (
	KindStep Kind = iota
	KindReset
)

func (k Kind) String() string {
	if k == KindReset {
		return "reset"
	}
	return "step"
}

// Observer receives simulator events. Calls are synchronous and never
// concurrent with each other.
type Observer interface {
	OnStep(env core.Environment, r core.StepResult) error
	OnReset(env core.Environment, r core.ResetResult) error
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	Step  func(env core.Environment, r core.StepResult) error
	Reset func(env core.Environment, r core.ResetResult) error
}

func (f ObserverFuncs) OnStep(env core.Environment, r core.StepResult) error {
	if f.Step == nil {
		return nil
	}
	return f.Step(env, r)
}

func (f ObserverFuncs) OnReset(env core.Environment, r core.ResetResult) error {
	if f.Reset == nil {
		return nil
	}
	return f.Reset(env, r)
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures observer registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging around the observer.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type entry struct {
	name     string
	observer Observer
	logged   bool
}

// Dispatcher delivers simulator events to observers in registration order.
type Dispatcher struct {
	logger  Logger
	metrics *instruments

	mu        sync.RWMutex
	observers []entry
}

// New creates a new Dispatcher with the given logger.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
	}
	metrics, err := newInstruments(func() int {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return len(d.observers)
	})
	if err != nil {
		return nil, err
	}
	d.metrics = metrics
	return d, nil
}

// Register appends an observer under name.
func (d *Dispatcher) Register(name string, o Observer, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, entry{name: name, observer: o, logged: cfg.logged})
}

// Observers returns the registered names in delivery order.
func (d *Dispatcher) Observers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.observers))
	for i, e := range d.observers {
		names[i] = e.name
	}
	return names
}

// HasObserver returns true if an observer is registered under name.
func (d *Dispatcher) HasObserver(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.observers {
		if e.name == name {
			return true
		}
	}
	return false
}

// PublishStep delivers a step to every observer, stopping at the first error.
func (d *Dispatcher) PublishStep(env core.Environment, r core.StepResult) error {
	return d.publish(KindStep, func(o Observer) error { return o.OnStep(env, r) })
}

// PublishReset delivers a reset to every observer, stopping at the first error.
func (d *Dispatcher) PublishReset(env core.Environment, r core.ResetResult) error {
	return d.publish(KindReset, func(o Observer) error { return o.OnReset(env, r) })
}

func (d *Dispatcher) publish(kind Kind, deliver func(Observer) error) error {
	d.mu.RLock()
	observers := make([]entry, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, e := range observers {
		start := time.Now()
		var err error
		if e.logged {
			err = d.withLogging(e.name, kind, deliver, e.observer)
		} else {
			err = deliver(e.observer)
		}
		d.metrics.record(e.name, kind, float64(time.Since(start).Microseconds())/1000, err)

		if err != nil {
			return fmt.Errorf("%s %s: %w", e.name, kind, err)
		}
	}
	return nil
}

func (d *Dispatcher) withLogging(name string, kind Kind, deliver func(Observer) error, o Observer) error {
	start := time.Now()
	d.logger.Debug("handling event", "observer", name, "event", kind)

	err := deliver(o)

	if err != nil {
		d.logger.Error("event failed", "observer", name, "event", kind, "duration", time.Since(start), "error", err)
	} else {
		d.logger.Debug("event complete", "observer", name, "event", kind, "duration", time.Since(start))
	}

	return err
}
