package sequence

import (
	"errors"
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var ErrBadRamp = errors.New("invalid color ramp")

// RampSteps is the step count the color viewer uses when none is given.
const RampSteps = 10

// GenerateColorRamp builds a sequence that blends every element from start
// to end in steps even RGB stops, one simulated second apart. Each step
// holds one keyframe per element, all with the same time.
func GenerateColorRamp(elementIDs []int, start, end string, opacity float64, steps int) ([]Keyframe, error) {
	if len(elementIDs) == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrBadRamp)
	}
	if steps <= 0 {
		steps = RampSteps
	}
	from, err := colorful.Hex(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start color %q", ErrBadRamp, start)
	}
	to, err := colorful.Hex(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end color %q", ErrBadRamp, end)
	}

	frames := make([]Keyframe, 0, steps*len(elementIDs))
	for i := 0; i < steps; i++ {
		t := 0.0
		if steps > 1 {
			t = float64(i) / float64(steps-1)
		}
		hex := from.BlendRgb(to, t).Hex()
		at := float64(i)
		for _, el := range elementIDs {
			c, o, tm := hex, opacity, at
			frames = append(frames, Keyframe{Time: &tm, ElementID: el, Color: &c, Opacity: &o})
		}
	}
	return frames, nil
}
