package sequence

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSchedulerCancel(t *testing.T) {
	s := NewFrameScheduler(1000, nil)
	var mu sync.Mutex
	fired := 0
	cancel := s.RequestFrame(func() { mu.Lock(); fired++; mu.Unlock() })
	cancel()
	cancel()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, fired)
}

func TestFrameSchedulerDefaultsFPS(t *testing.T) {
	assert.Equal(t, time.Second/DefaultFPS, NewFrameScheduler(0, nil).Interval())
	assert.Equal(t, 10*time.Millisecond, NewFrameScheduler(100, nil).Interval())
}

func TestSessionPlaysToEnd(t *testing.T) {
	scene := &recScene{current: iptr(1)}
	done := make(chan struct{})
	s := NewSession(scene, Hooks{Finished: func() { close(done) }}, 200, WithLogger(zerolog.Nop()))

	s.With(func(c *Controller) {
		c.Load([]Keyframe{
			{Time: fptr(0), ElementID: 1},
			{Time: fptr(0.05), ElementID: 2, Visible: bptr(false)},
			{Time: fptr(0.1), ElementID: 3, Visible: bptr(true)},
		})
		c.SetPlaybackSpeed(5)
		c.Play()
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not finish")
	}
	st := s.Status()
	assert.Equal(t, Stopped, st.State)
	assert.Equal(t, 0, st.Index)

	var calls []string
	s.With(func(c *Controller) { calls = append(calls, scene.calls...) })
	require.Len(t, calls, 2)
	assert.Equal(t, "vis:1/2:false", calls[0])
	assert.Equal(t, "vis:1/3:true", calls[1])
}
