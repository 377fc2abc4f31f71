package env

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"
)

// Drift produces a smooth, seed-deterministic fluctuation of survival
// pressure across generations: harsh seasons and mild seasons instead of
// a constant modifier. The offset at a given generation depends only on
// the drift seed, so replaying a trial reproduces the same climate.
type Drift struct {
	noise     opensimplex.Noise
	amplitude float64
	frequency float64
}

// NewDrift builds a drift source. Amplitude bounds the additive offset to
// [-amplitude, +amplitude]; frequency stretches or compresses the noise
// along the generation axis.
func NewDrift(seed int64, amplitude, frequency float64) (*Drift, error) {
	if amplitude < 0 {
		return nil, fmt.Errorf("drift amplitude must be >= 0, got %v", amplitude)
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("drift frequency must be > 0, got %v", frequency)
	}
	return &Drift{
		noise:     opensimplex.NewNormalized(seed),
		amplitude: amplitude,
		frequency: frequency,
	}, nil
}

// Offset returns the survival-probability offset for a generation.
func (d *Drift) Offset(generation int) float64 {
	n := d.noise.Eval2(float64(generation)*d.frequency, 0)
	return (n*2 - 1) * d.amplitude
}
