package scene

import (
	"errors"
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var ErrBadColor = errors.New("unrecognised color")

// named covers the color words the viewer's pickers and data files use.
var named = map[string]string{
	"red":    "#ff0000",
	"green":  "#00ff00",
	"blue":   "#0000ff",
	"white":  "#ffffff",
	"black":  "#000000",
	"gray":   "#808080",
	"grey":   "#808080",
	"yellow": "#ffff00",
	"orange": "#ffa500",
	"cyan":   "#00ffff",
	"purple": "#800080",
}

// ParseColor accepts #rgb, #rrggbb, 0xrrggbb, bare rrggbb and a few names,
// and returns the color as lowercase #rrggbb.
func ParseColor(s string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := named[in]; ok {
		in = hex
	}
	switch {
	case strings.HasPrefix(in, "0x"):
		in = "#" + in[2:]
	case !strings.HasPrefix(in, "#"):
		in = "#" + in
	}
	if len(in) != 4 && len(in) != 7 {
		return "", fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	c, err := colorful.Hex(in)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return c.Hex(), nil
}

func clampOpacity(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
