package streaming

import (
	"encoding/json"

	"github.com/trackside/envstate/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartEpisode = "start_episode"
	TypeEndEpisode   = "end_episode"
	TypeStep         = "step"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartEpisodePayload carries the episode header.
type StartEpisodePayload struct {
	Episode *core.Episode `json:"episode"`
}

// StepPayload carries one step of every agent.
type StepPayload struct {
	Step *core.StepSnapshot `json:"step"`
}

// EndEpisodePayload closes the episode named by EpisodeID.
type EndEpisodePayload struct {
	EpisodeID string `json:"episodeId"`
}
