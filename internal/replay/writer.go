package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/trackside/envstate/pkg/core"
)

// Writer appends records to a telemetry log.
type Writer struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create creates (or truncates) a log file. Paths ending in .zst are zstd
// compressed.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f}

	var dst io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		w.enc = enc
		dst = enc
	}
	w.w = bufio.NewWriterSize(dst, 128*1024)
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// WriteReset appends a reset onto cfg.
func (w *Writer) WriteReset(cfg core.TrackConfig, agents []string) error {
	return w.Write(ResetRecord(cfg, agents))
}

// WriteStep appends a step.
func (w *Writer) WriteStep(r core.StepResult) error {
	return w.Write(StepRecord(r))
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.enc != nil {
		err = errors.Join(err, w.enc.Close())
	}
	return errors.Join(err, w.f.Close())
}
