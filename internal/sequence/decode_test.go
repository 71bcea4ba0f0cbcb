package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsNonArrays(t *testing.T) {
	for _, in := range []string{``, `"not an array"`, `{"frames":[]}`, `42`, `null`, `[{"elementId":1},`} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrFormat, "input %q", in)
	}
}

func TestDecodeRequiresElementID(t *testing.T) {
	_, err := Decode([]byte(`[{"elementId":1},{"time":2}]`))
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "frame 1")
}

func TestDecodeRejectsNegativeTime(t *testing.T) {
	_, err := Decode([]byte(`[{"elementId":1,"time":-0.5}]`))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeOptionalFields(t *testing.T) {
	frames, err := Decode([]byte(`[
		{"elementId":0,"modelId":0,"visible":false},
		{"elementId":7,"time":1.5,"position":{"x":1,"y":2,"z":3},"color":"#abc","opacity":0.25},
		{"elementId":8}
	]`))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	f := frames[0]
	assert.Equal(t, 0, f.ElementID)
	require.NotNil(t, f.ModelID)
	assert.Equal(t, 0, *f.ModelID)
	require.NotNil(t, f.Visible)
	assert.False(t, *f.Visible)
	assert.Nil(t, f.Time)
	assert.Equal(t, 0.0, f.TimeAt(0))

	f = frames[1]
	assert.Equal(t, 1.5, f.TimeAt(1))
	assert.Equal(t, &Vec3{1, 2, 3}, f.Position)
	assert.Nil(t, f.Rotation)
	assert.Equal(t, "#abc", *f.Color)
	assert.Equal(t, 0.25, *f.Opacity)

	assert.True(t, frames[2].Empty())
	assert.Equal(t, 2.0, frames[2].TimeAt(2))
}

func TestDecodeEmptyArray(t *testing.T) {
	frames, err := Decode([]byte(` [] `))
	require.NoError(t, err)
	assert.Empty(t, frames)
}
