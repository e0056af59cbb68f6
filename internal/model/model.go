package model

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&TrackLayout{},
	&Episode{},
	&AgentStep{},
}

////////////////////////
// TRACK MODELS
////////////////////////

// TrackLayout is one track geometry as driven: a name plus the start line and
// direction that shaped its waypoint order.
type TrackLayout struct {
	gorm.Model
	Name        string         `json:"name" gorm:"size:127;index:idx_track_layout_name"`
	Fingerprint string         `json:"fingerprint" gorm:"size:16;uniqueIndex"` // hex xxhash of name, direction and waypoints
	IsClockwise bool           `json:"isClockwise"`
	FinishLine  float64        `json:"finishLine"`
	TrackLength float64        `json:"trackLength"`
	Waypoints   datatypes.JSON `json:"waypoints" gorm:"type:jsonb;default:'[]'"` // [[x, y], ...]
	Episodes    []Episode
}

func (*TrackLayout) TableName() string {
	return "track_layouts"
}

// GetOrInsert loads the layout with the same fingerprint, inserting t when
// none exists yet.
func (t *TrackLayout) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existing TrackLayout
	err = db.Where("fingerprint = ?", t.Fingerprint).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(t).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*t = existing
	return false, nil
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Episode is the span between two resets
type Episode struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID          string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	CreatedAt     time.Time      `json:"createdAt"`
	StartTime     time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_episode_start"`
	EndTime       sql.NullTime   `json:"endTime" gorm:"type:timestamptz"`
	TrackLayoutID uint           `json:"trackLayoutId"`
	TrackLayout   TrackLayout    `gorm:"foreignkey:TrackLayoutID"`
	Agents        datatypes.JSON `json:"agents" gorm:"type:jsonb;default:'[]'"` // agent names in roster order
	StepCount     uint           `json:"stepCount"`
	AgentSteps    []AgentStep
}

func (*Episode) TableName() string {
	return "episodes"
}

// AgentStep is one agent's derived state after one simulator step
type AgentStep struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	EpisodeID uint      `json:"episodeId" gorm:"index:idx_agentstep_episode_id"`
	Episode   Episode   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	Sequence  uint      `json:"sequence" gorm:"index:idx_agentstep_sequence"` // orchestrator step counter
	AgentName string    `json:"agentName" gorm:"size:64;index:idx_agentstep_agent_name"`

	// action
	SteeringAngle float64 `json:"steeringAngle"` // degrees
	Speed         float64 `json:"speed"`         // m/s

	// pose
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	// status
	Steps              uint           `json:"steps"`
	Done               bool           `json:"done" gorm:"default:false"`
	IsOfftrack         bool           `json:"isOfftrack" gorm:"default:false"`
	AllWheelsOnTrack   bool           `json:"allWheelsOnTrack" gorm:"default:true"`
	Progress           float64        `json:"progress"`
	ClosestWaypoints   datatypes.JSON `json:"closestWaypoints" gorm:"type:jsonb;default:'[]'"` // [prev, next]
	DistanceFromCenter float64        `json:"distanceFromCenter"`
	TrackWidth         float64        `json:"trackWidth"`
	IsLeftOfCenter     bool           `json:"isLeftOfCenter"`
}

func (*AgentStep) TableName() string {
	return "agent_steps"
}
