package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/trackside/envstate/pkg/core"
	"github.com/trackside/envstate/pkg/streaming"
)

var errNoEpisode = errors.New("no episode started")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams episodes over a websocket to a live viewer.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	conn *connection
	cfg  Config

	mu        sync.Mutex
	episodeID string
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartEpisode sends the episode header and waits for the server ack.
func (b *Backend) StartEpisode(e *core.Episode) error {
	data, err := marshalEnvelope(streaming.TypeStartEpisode, streaming.StartEpisodePayload{Episode: e})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.episodeID = e.ID
	b.mu.Unlock()

	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartEpisode, ackTimeout)
}

// RecordStep streams s without waiting for the server.
func (b *Backend) RecordStep(s *core.StepSnapshot) error {
	b.mu.Lock()
	open := b.episodeID != ""
	b.mu.Unlock()
	if !open {
		return errNoEpisode
	}

	data, err := marshalEnvelope(streaming.TypeStep, streaming.StepPayload{Step: s})
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndEpisode sends end_episode and waits for the server ack.
func (b *Backend) EndEpisode() error {
	b.mu.Lock()
	id := b.episodeID
	b.episodeID = ""
	b.mu.Unlock()
	if id == "" {
		return errNoEpisode
	}

	data, err := marshalEnvelope(streaming.TypeEndEpisode, streaming.EndEpisodePayload{EpisodeID: id})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndEpisode, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}
