package storage_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/pkg/core"
)

type fakeBackend struct {
	calls  []string
	fail   map[string]error
	export string
}

func (f *fakeBackend) record(call string) error {
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeBackend) Init() error                         { return f.record("init") }
func (f *fakeBackend) Close() error                        { return f.record("close") }
func (f *fakeBackend) StartEpisode(*core.Episode) error    { return f.record("start") }
func (f *fakeBackend) RecordStep(*core.StepSnapshot) error { return f.record("step") }
func (f *fakeBackend) EndEpisode() error                   { return f.record("end") }
func (f *fakeBackend) GetExportedFilePath() string         { return f.export }

var _ storage.Backend = storage.Fanout{}

func TestFanoutForwardsToEveryBackend(t *testing.T) {
	a, b := &fakeBackend{}, &fakeBackend{}
	f := storage.Fanout{a, b}

	require.NoError(t, f.Init())
	require.NoError(t, f.StartEpisode(&core.Episode{}))
	require.NoError(t, f.RecordStep(&core.StepSnapshot{}))
	require.NoError(t, f.EndEpisode())
	require.NoError(t, f.Close())

	want := []string{"init", "start", "step", "end", "close"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}

func TestFanoutJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &fakeBackend{fail: map[string]error{"step": errA}}
	b := &fakeBackend{fail: map[string]error{"step": errB}}
	c := &fakeBackend{}

	err := storage.Fanout{a, b, c}.RecordStep(&core.StepSnapshot{})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"step"}, c.calls)
}

func TestFanoutExportedFilePath(t *testing.T) {
	f := storage.Fanout{&fakeBackend{}, &fakeBackend{export: "/tmp/x.json.gz"}}
	assert.Equal(t, "/tmp/x.json.gz", f.GetExportedFilePath())
	assert.Empty(t, storage.Fanout{&fakeBackend{}}.GetExportedFilePath())
}
