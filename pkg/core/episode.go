// pkg/core/episode.go
package core

import "time"

// TrackSnapshot is the exported form of the track state.
type TrackSnapshot struct {
	Name        string    `json:"name"`
	IsClockwise bool      `json:"isClockwise"`
	TrackLength float64   `json:"trackLength"`
	Waypoints   []Point2D `json:"waypoints"`
}

// AgentSnapshot is the exported form of one agent's action, pose and status.
type AgentSnapshot struct {
	Name string `json:"name"`

	// action
	SteeringAngle float64 `json:"steeringAngle"`
	Speed         float64 `json:"speed"`

	// pose, nose point and euler angles
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	// status
	AllWheelsOnTrack   bool    `json:"allWheelsOnTrack"`
	ClosestWaypoints   [2]int  `json:"closestWaypoints"`
	DistanceFromCenter float64 `json:"distanceFromCenter"`
	IsOfftrack         bool    `json:"isOfftrack"`
	Progress           float64 `json:"progress"`
	Steps              uint    `json:"steps"`
	TrackWidth         float64 `json:"trackWidth"`
	IsLeftOfCenter     bool    `json:"isLeftOfCenter"`
	Done               bool    `json:"done"`
}

// StepSnapshot is a consistent view of every agent after one step.
type StepSnapshot struct {
	EpisodeID string          `json:"episodeId"`
	Sequence  uint            `json:"sequence"`
	Time      time.Time       `json:"time"`
	Agents    []AgentSnapshot `json:"agents"`
}

// Episode describes one recording between two resets.
type Episode struct {
	ID        string        `json:"id"`
	StartTime time.Time     `json:"startTime"`
	Track     TrackSnapshot `json:"track"`
	Config    TrackConfig   `json:"config"`
	Agents    []string      `json:"agents"`
}
