// pkg/core/events.go
package core

// StepResult is what the simulator publishes after every step. Observations
// and rewards are carried through untouched.
type StepResult struct {
	Observations map[string]any       `json:"observations,omitempty"`
	Rewards      map[string]float64   `json:"rewards,omitempty"`
	Done         map[string]bool      `json:"done"`
	Actions      map[string]Action    `json:"actions"`
	Info         map[string]AgentInfo `json:"info"`
}

// ResetResult is what the simulator publishes after a reset.
type ResetResult struct {
	Observations map[string]any       `json:"observations,omitempty"`
	Info         map[string]AgentInfo `json:"info,omitempty"`
}

// Environment is the read side of a simulator as seen by its observers.
type Environment interface {
	Track() TrackConfig
	Agent() AgentRoster
}
