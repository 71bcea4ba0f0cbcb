package sequence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrFormat = errors.New("invalid simulation data format")

// wireKeyframe mirrors Keyframe but keeps elementId optional so a missing
// id can be told apart from element 0.
type wireKeyframe struct {
	Time      *float64 `json:"time"`
	ElementID *int     `json:"elementId"`
	ModelID   *int     `json:"modelId"`
	Position  *Vec3    `json:"position"`
	Rotation  *Vec3    `json:"rotation"`
	Scale     *Vec3    `json:"scale"`
	Color     *string  `json:"color"`
	Opacity   *float64 `json:"opacity"`
	Visible   *bool    `json:"visible"`
}

// Decode parses a JSON array of keyframes. Anything other than an array,
// an entry without elementId, or a negative time is a format error.
func Decode(raw []byte) ([]Keyframe, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrFormat)
	}
	var in []wireKeyframe
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	out := make([]Keyframe, 0, len(in))
	for i, w := range in {
		if w.ElementID == nil {
			return nil, fmt.Errorf("%w: frame %d has no elementId", ErrFormat, i)
		}
		if w.Time != nil && *w.Time < 0 {
			return nil, fmt.Errorf("%w: frame %d has negative time %v", ErrFormat, i, *w.Time)
		}
		out = append(out, Keyframe{
			Time:      w.Time,
			ElementID: *w.ElementID,
			ModelID:   w.ModelID,
			Position:  w.Position,
			Rotation:  w.Rotation,
			Scale:     w.Scale,
			Color:     w.Color,
			Opacity:   w.Opacity,
			Visible:   w.Visible,
		})
	}
	return out, nil
}
