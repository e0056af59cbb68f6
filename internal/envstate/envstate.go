// Package envstate keeps the per-agent and track state of a running simulator
// up to date from its step and reset events.
package envstate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trackside/envstate/internal/agent"
	"github.com/trackside/envstate/internal/dispatcher"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/track"
	"github.com/trackside/envstate/internal/trackgeom"
	"github.com/trackside/envstate/pkg/core"
)

// ObserverName is the name EnvState registers under.
const ObserverName = "envstate"

// GeometryBuilder builds the track geometry for a config.
type GeometryBuilder func(core.TrackConfig) (telemetry.TrackGeometry, error)

// Simulator is the environment EnvState observes.
type Simulator interface {
	core.Environment
	Register(name string, o dispatcher.Observer, opts ...dispatcher.Option)
}

// Option configures an EnvState.
type Option func(*EnvState)

// WithGeometryBuilder replaces the default builder, which loads the built-in
// tracks.
func WithGeometryBuilder(b GeometryBuilder) Option {
	return func(e *EnvState) {
		e.build = b
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *EnvState) {
		e.logger = l
	}
}

// EnvState is the state of every agent and of the track. Event handlers and
// the read accessors may run on different goroutines.
type EnvState struct {
	build  GeometryBuilder
	logger *slog.Logger

	mu          sync.RWMutex
	trackConfig core.TrackConfig
	geometry    telemetry.TrackGeometry
	track       *track.Track
	names       []string
	agents      map[string]*agent.Agent
	sequence    uint
}

var _ dispatcher.Observer = (*EnvState)(nil)

// New reads the simulator's track and agents, builds their state and
// registers for the simulator's events.
func New(sim Simulator, opts ...Option) (*EnvState, error) {
	e := &EnvState{
		build:  trackgeom.Builder(""),
		logger: slog.Default(),
		agents: make(map[string]*agent.Agent),
	}
	for _, opt := range opts {
		opt(e)
	}

	cfg := sim.Track()
	geometry, err := e.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build track %q: %w", cfg.Name, err)
	}
	e.trackConfig = cfg
	e.geometry = geometry
	e.track = track.New(cfg.Name, geometry)

	for _, a := range sim.Agent().AgentConfigs() {
		if _, ok := e.agents[a.Name]; ok {
			e.logger.Warn("duplicate agent in roster, ignore", "agent", a.Name)
			continue
		}
		e.names = append(e.names, a.Name)
		e.agents[a.Name] = agent.New(a.Name, geometry, e.logger)
	}

	sim.Register(ObserverName, e, dispatcher.Logged())
	e.logger.Info("env state ready", "track", cfg.Name, "direction", cfg.Direction, "agents", e.names)
	return e, nil
}

// OnStep updates every agent and the track from one step.
func (e *EnvState) OnStep(_ core.Environment, r core.StepResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := telemetry.NewBundle(r.Done, r.Actions, r.Info, e.geometry)
	for _, name := range e.names {
		if err := e.agents[name].Update(b); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
	}
	if err := e.track.Update(b); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	e.sequence++
	return nil
}

// OnReset rebuilds the geometry when the simulator switched track layout.
func (e *EnvState) OnReset(env core.Environment, _ core.ResetResult) error {
	cfg := env.Track()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = 0
	if cfg == e.trackConfig {
		return nil
	}

	geometry, err := e.build(cfg)
	if err != nil {
		return fmt.Errorf("rebuild track %q: %w", cfg.Name, err)
	}
	e.logger.Info("track changed", "from", e.trackConfig.Name, "to", cfg.Name,
		"finishLine", cfg.FinishLine, "direction", cfg.Direction)
	e.geometry = geometry
	e.trackConfig = cfg
	e.track.SetName(cfg.Name)
	return nil
}

// TrackConfig returns the config of the current geometry.
func (e *EnvState) TrackConfig() core.TrackConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trackConfig
}

// Geometry returns the current track geometry, which is immutable.
func (e *EnvState) Geometry() telemetry.TrackGeometry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.geometry
}

// Track returns a copy of the track state.
func (e *EnvState) Track() *track.Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.track.Clone()
}

// Agents returns copies of every agent keyed by name.
func (e *EnvState) Agents() map[string]*agent.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*agent.Agent, len(e.agents))
	for name, a := range e.agents {
		out[name] = a.Clone()
	}
	return out
}

// AgentNames returns the agent names in roster order.
func (e *EnvState) AgentNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Snapshot exports every agent as of the last completed step.
func (e *EnvState) Snapshot() core.StepSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agents := make([]core.AgentSnapshot, 0, len(e.names))
	for _, name := range e.names {
		agents = append(agents, e.agents[name].Snapshot())
	}
	return core.StepSnapshot{
		Sequence: e.sequence,
		Time:     time.Now(),
		Agents:   agents,
	}
}

// ToDict merges each agent's map, keyed by agent name, with the track map.
func (e *EnvState) ToDict() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]any, len(e.names)+3)
	for _, name := range e.names {
		out[name] = e.agents[name].ToDict()
	}
	for k, v := range e.track.ToDict() {
		out[k] = v
	}
	return out
}
