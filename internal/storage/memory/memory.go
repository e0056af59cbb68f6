// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/trackside/envstate/internal/config"
	"github.com/trackside/envstate/pkg/core"
)

var errNoEpisode = errors.New("no episode started")

// AgentRecord groups an agent name with every snapshot recorded for it
type AgentRecord struct {
	Name   string
	States []core.AgentSnapshot
	// Sequences[i] is the step sequence of States[i]
	Sequences []uint
}

// Backend stores episode data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	episode *core.Episode

	agents map[string]*AgentRecord // keyed by agent name
	order  []string
	steps  int

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		agents: make(map[string]*AgentRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartEpisode begins recording a new episode
func (b *Backend) StartEpisode(e *core.Episode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episode = e

	// Reset all collections
	b.agents = make(map[string]*AgentRecord, len(e.Agents))
	b.order = b.order[:0]
	for _, name := range e.Agents {
		b.addAgent(name)
	}
	b.steps = 0

	return nil
}

// EndEpisode finalizes and exports the episode data
func (b *Backend) EndEpisode() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return errNoEpisode
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.episode = nil
	return nil
}

// RecordStep appends every agent snapshot of s to its record
func (b *Backend) RecordStep(s *core.StepSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return errNoEpisode
	}

	for _, a := range s.Agents {
		record, ok := b.agents[a.Name]
		if !ok {
			record = b.addAgent(a.Name)
		}
		record.States = append(record.States, a)
		record.Sequences = append(record.Sequences, s.Sequence)
	}
	b.steps++
	return nil
}

func (b *Backend) addAgent(name string) *AgentRecord {
	record := &AgentRecord{Name: name}
	b.agents[name] = record
	b.order = append(b.order, name)
	return record
}

// GetAgent looks up an agent record by name
func (b *Backend) GetAgent(name string) (*AgentRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.agents[name]
	return record, ok
}

// StepCount returns the number of steps recorded in the current episode
func (b *Backend) StepCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.steps
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
