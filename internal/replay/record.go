package replay

import (
	"errors"
	"fmt"

	"github.com/trackside/envstate/pkg/core"
)

// Record types.
const (
	TypeReset = "reset"
	TypeStep  = "step"
)

// ErrInvalidRecord is returned for a log line that cannot be replayed.
var ErrInvalidRecord = errors.New("invalid record")

// RecordError reports which line of a log was rejected and why.
type RecordError struct {
	Line   int
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s at line %d: %s", ErrInvalidRecord, e.Line, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRecord) hold.
func (e *RecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// TrackRecord is the track part of a reset record.
type TrackRecord struct {
	Name       string              `json:"name"`
	FinishLine float64             `json:"finish_line"`
	Direction  core.TrackDirection `json:"direction"`
}

// AgentInfoRecord is one agent's entry in a step's info map.
type AgentInfoRecord struct {
	Position    []float64 `json:"position"`    // [x, y, z]
	Orientation []float64 `json:"orientation"` // [x, y, z, w]
	IsOfftrack  bool      `json:"is_offtrack"`
	Progress    float64   `json:"progress"`
}

// Record is one line of a telemetry log.
type Record struct {
	Type string `json:"type"`

	// reset; absent fields keep the previous value
	Track  *TrackRecord `json:"track,omitempty"`
	Agents []string     `json:"agents,omitempty"`

	// step
	Done   map[string]bool            `json:"done,omitempty"`
	Action map[string][]float64       `json:"action,omitempty"` // [steering_angle, speed]
	Info   map[string]AgentInfoRecord `json:"info,omitempty"`
	Reward map[string]float64         `json:"reward,omitempty"`

	Observations map[string]any `json:"observations,omitempty"`
}

func (t *TrackRecord) config() core.TrackConfig {
	return core.TrackConfig{Name: t.Name, FinishLine: t.FinishLine, Direction: t.Direction}
}

func roster(names []string) core.AgentRoster {
	if len(names) == 1 {
		return core.AgentConfig{Name: names[0]}
	}
	list := make(core.AgentList, len(names))
	for i, n := range names {
		list[i] = core.AgentConfig{Name: n}
	}
	return list
}

// validate checks the shape of r. line is used for the error only.
func (r *Record) validate(line int) error {
	fail := func(format string, args ...any) error {
		return &RecordError{Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	switch r.Type {
	case TypeReset:
		if r.Track != nil {
			if r.Track.Name == "" {
				return fail("track name is empty")
			}
			if r.Track.FinishLine < 0 || r.Track.FinishLine > 1 {
				return fail("finish_line %v outside [0, 1]", r.Track.FinishLine)
			}
		}
		return nil
	case TypeStep:
	default:
		return fail("unknown type %q", r.Type)
	}

	for name, a := range r.Action {
		if len(a) != 2 {
			return fail("action of %q has %d values, want 2", name, len(a))
		}
	}
	for name, info := range r.Info {
		if len(info.Position) != 3 {
			return fail("position of %q has %d values, want 3", name, len(info.Position))
		}
		if len(info.Orientation) != 4 {
			return fail("orientation of %q has %d values, want 4", name, len(info.Orientation))
		}
		if info.Progress < 0 || info.Progress > 100 {
			return fail("progress of %q is %v, want [0, 100]", name, info.Progress)
		}
	}
	return nil
}

// stepResult converts a validated step record.
func (r *Record) stepResult() core.StepResult {
	res := core.StepResult{
		Observations: r.Observations,
		Rewards:      r.Reward,
		Done:         r.Done,
		Actions:      make(map[string]core.Action, len(r.Action)),
		Info:         make(map[string]core.AgentInfo, len(r.Info)),
	}
	if res.Done == nil {
		res.Done = map[string]bool{}
	}
	for name, a := range r.Action {
		res.Actions[name] = core.Action{SteeringAngle: a[0], Speed: a[1]}
	}
	for name, info := range r.Info {
		res.Info[name] = core.AgentInfo{
			Position:    core.Position3D{X: info.Position[0], Y: info.Position[1], Z: info.Position[2]},
			Orientation: core.Quaternion{X: info.Orientation[0], Y: info.Orientation[1], Z: info.Orientation[2], W: info.Orientation[3]},
			IsOfftrack:  info.IsOfftrack,
			Progress:    info.Progress,
		}
	}
	return res
}

// StepRecord builds the record for one step.
func StepRecord(r core.StepResult) Record {
	rec := Record{
		Type:         TypeStep,
		Done:         r.Done,
		Action:       make(map[string][]float64, len(r.Actions)),
		Info:         make(map[string]AgentInfoRecord, len(r.Info)),
		Reward:       r.Rewards,
		Observations: r.Observations,
	}
	for name, a := range r.Actions {
		rec.Action[name] = []float64{a.SteeringAngle, a.Speed}
	}
	for name, info := range r.Info {
		rec.Info[name] = AgentInfoRecord{
			Position:    []float64{info.Position.X, info.Position.Y, info.Position.Z},
			Orientation: []float64{info.Orientation.X, info.Orientation.Y, info.Orientation.Z, info.Orientation.W},
			IsOfftrack:  info.IsOfftrack,
			Progress:    info.Progress,
		}
	}
	return rec
}

// ResetRecord builds the record for a reset onto cfg with the given agents.
func ResetRecord(cfg core.TrackConfig, agents []string) Record {
	return Record{
		Type:   TypeReset,
		Track:  &TrackRecord{Name: cfg.Name, FinishLine: cfg.FinishLine, Direction: cfg.Direction},
		Agents: agents,
	}
}
