// pkg/core/vehicle.go
package core

// Position3D is a world-space point in metres.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in (x, y, z, w) order.
// Callers must supply unit quaternions; nothing renormalizes them.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

// Action is the last command sent to an agent.
type Action struct {
	SteeringAngle float64 `json:"steeringAngle"` // degrees
	Speed         float64 `json:"speed"`         // metres per second
}

// AgentInfo is the per-agent part of a step's info map.
type AgentInfo struct {
	Position    Position3D `json:"position"`
	Orientation Quaternion `json:"orientation"`
	IsOfftrack  bool       `json:"isOfftrack"`
	Progress    float64    `json:"progress"` // [0, 100]
}

// AgentConfig describes one vehicle registered with the simulator.
type AgentConfig struct {
	Name string `json:"name"`
}

// AgentList is a roster of several agents.
type AgentList []AgentConfig

// AgentRoster is what a simulator reports as its agents: either a single
// AgentConfig or an AgentList.
type AgentRoster interface {
	AgentConfigs() []AgentConfig
}

// AgentConfigs wraps a single agent into a one-element roster.
func (a AgentConfig) AgentConfigs() []AgentConfig {
	return []AgentConfig{a}
}

// AgentConfigs returns the roster as-is.
func (l AgentList) AgentConfigs() []AgentConfig {
	return []AgentConfig(l)
}
