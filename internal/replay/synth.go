package replay

import (
	"math"

	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/pkg/core"
)

// LapOptions shapes a synthesized lap.
type LapOptions struct {
	Steps   int     // steps per lap
	Speed   float64 // reported speed, m/s
	Stagger float64 // start offset between consecutive agents, fraction of a lap
}

// WriteLap writes a reset followed by one lap of every agent driving the
// centre line of geometry. The final step reports every agent done.
func WriteLap(w *Writer, cfg core.TrackConfig, geometry telemetry.TrackGeometry, agents []string, opts LapOptions) error {
	if opts.Steps <= 0 {
		opts.Steps = 100
	}
	if err := w.WriteReset(cfg, agents); err != nil {
		return err
	}

	center := geometry.CenterLine()
	delta := 1 / float64(opts.Steps)
	for i := 1; i <= opts.Steps; i++ {
		r := core.StepResult{
			Done:    make(map[string]bool, len(agents)),
			Actions: make(map[string]core.Action, len(agents)),
			Info:    make(map[string]core.AgentInfo, len(agents)),
		}
		for k, name := range agents {
			frac := math.Mod(float64(i)*delta+float64(k)*opts.Stagger, 1)
			p := center.Interpolate(frac, true)
			ahead := center.Interpolate(math.Mod(frac+delta/2, 1), true)
			yaw := math.Atan2(ahead.Y-p.Y, ahead.X-p.X)

			r.Done[name] = i == opts.Steps
			r.Actions[name] = core.Action{Speed: opts.Speed}
			r.Info[name] = core.AgentInfo{
				Position:    core.Position3D{X: p.X, Y: p.Y},
				Orientation: core.Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)},
				Progress:    100 * float64(i) / float64(opts.Steps),
			}
		}
		if err := w.WriteStep(r); err != nil {
			return err
		}
	}
	return nil
}
