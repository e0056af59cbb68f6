// pkg/core/track.go
package core

import (
	"fmt"
	"strings"
)

// TrackDirection is the direction of travel around a track.
type TrackDirection int

const (
	CounterClockwise TrackDirection = iota
	Clockwise
)

func (d TrackDirection) String() string {
	switch d {
	case Clockwise:
		return "clockwise"
	default:
		return "counter_clockwise"
	}
}

// ParseTrackDirection accepts "clockwise"/"cw" and "counter_clockwise"/"ccw"
// in any case.
func ParseTrackDirection(s string) (TrackDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clockwise", "cw":
		return Clockwise, nil
	case "counter_clockwise", "counterclockwise", "ccw", "":
		return CounterClockwise, nil
	default:
		return CounterClockwise, fmt.Errorf("unknown track direction %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d TrackDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TrackDirection) UnmarshalText(b []byte) error {
	v, err := ParseTrackDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TrackRegion classifies a point relative to the track lanes.
type TrackRegion int

const (
	InnerLane TrackRegion = iota
	InnerOfftrack
	OuterLane
	OuterOfftrack
)

func (r TrackRegion) String() string {
	switch r {
	case InnerLane:
		return "inner_lane"
	case InnerOfftrack:
		return "inner_offtrack"
	case OuterLane:
		return "outer_lane"
	default:
		return "outer_offtrack"
	}
}

// IsInner reports whether r is on the inner side of the centre line.
func (r TrackRegion) IsInner() bool {
	return r == InnerLane || r == InnerOfftrack
}

// TrackConfig identifies a track layout. It is comparable; two configs
// describe the same layout when they are ==.
type TrackConfig struct {
	Name       string         `json:"name"`
	FinishLine float64        `json:"finishLine"` // normalized distance of the start/finish line
	Direction  TrackDirection `json:"direction"`
}

// Point2D is a planar coordinate on the track.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
