package fake

import (
	"fmt"
	"io"

	"github.com/coreman2200/ifcviewer/internal/sequence"
)

// Printer prints one line per scene call, useful for headless runs.
// It reports a fixed model as the current one.
type Printer struct {
	Out   io.Writer
	Model *int
	Count int
}

var _ sequence.Scene = (*Printer)(nil)

func (p *Printer) line(format string, args ...any) error {
	p.Count++
	_, err := fmt.Fprintf(p.Out, "[call %04d] "+format+"\n", append([]any{p.Count}, args...)...)
	return err
}

func (p *Printer) ApplyPosition(m, e int, x, y, z float64) error {
	return p.line("position model=%d element=%d (%.3f,%.3f,%.3f)", m, e, x, y, z)
}

func (p *Printer) ApplyRotation(m, e int, x, y, z float64) error {
	return p.line("rotation model=%d element=%d (%.3f,%.3f,%.3f)", m, e, x, y, z)
}

func (p *Printer) ApplyScale(m, e int, x, y, z float64) error {
	return p.line("scale    model=%d element=%d (%.3f,%.3f,%.3f)", m, e, x, y, z)
}

func (p *Printer) ApplyColor(m, e int, color string, opacity *float64) error {
	o := 1.0
	if opacity != nil {
		o = *opacity
	}
	return p.line("color    model=%d element=%d %s opacity=%.2f", m, e, color, o)
}

func (p *Printer) SetVisibility(m, e int, visible bool) error {
	return p.line("visible  model=%d element=%d %t", m, e, visible)
}

func (p *Printer) CurrentModelID() (int, bool) {
	if p.Model == nil {
		return 0, false
	}
	return *p.Model, true
}
