package sequence

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/ifcviewer/internal/diagnostics"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 5.0
)

var ErrOutOfRange = errors.New("frame index out of range")

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(p *Controller) { p.clock = c } }

// WithScheduler replaces the refresh scheduler.
func WithScheduler(s Scheduler) Option { return func(p *Controller) { p.sched = s } }

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option { return func(p *Controller) { p.log = l } }

// NewController constructs a stopped Controller with an empty sequence.
func NewController(scene Scene, h Hooks, opts ...Option) *Controller {
	c := &Controller{
		state: Stopped,
		speed: 1.0,
		scene: scene,
		hooks: h,
		clock: systemClock{},
		log:   log.With().Str("component", "sequence").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.sched == nil {
		c.sched = NewFrameScheduler(DefaultFPS, nil)
	}
	return c
}

// Load replaces the sequence, rewinds to index 0 and stops playback.
// Frames are played in the given order; they are not sorted by time.
func (c *Controller) Load(frames []Keyframe) {
	c.cancelTick()
	c.frames = frames
	c.index = 0
	c.nowS = 0
	c.state = Stopped

	if len(frames) > 0 && frames[0].ModelID != nil {
		id := *frames[0].ModelID
		c.modelID = &id
		c.log.Info().Int("frames", len(frames)).Int("model_id", id).Msg("sequence loaded; model id from data")
		return
	}
	c.modelID = nil
	if id, ok := c.currentModel(); ok {
		c.modelID = &id
		c.log.Info().Int("frames", len(frames)).Int("model_id", id).Msg("sequence loaded; using current model")
		return
	}
	c.log.Warn().Int("frames", len(frames)).Msg("sequence loaded; model id unresolved until a model is loaded")
}

// LoadJSON decodes raw keyframe data and loads it. On a format error the
// controller is left untouched.
func (c *Controller) LoadJSON(raw []byte) error {
	frames, err := Decode(raw)
	if err != nil {
		c.log.Error().Err(err).Msg("sequence data rejected")
		c.report(diag.Diagnostic{
			Severity:       diag.Err,
			Code:           diag.LoadFormat,
			Summary:        "Simulation data is not a keyframe list",
			Detail:         err.Error(),
			SuggestedFixes: []string{"send a JSON array of {elementId, time, ...} records"},
		})
		return err
	}
	c.Load(frames)
	return nil
}

// GoToFrame seeks directly to index and applies that keyframe. Frames in
// between are skipped.
func (c *Controller) GoToFrame(index int) error {
	if index < 0 || index >= len(c.frames) {
		c.log.Warn().Int("index", index).Int("frames", len(c.frames)).Msg("invalid frame index")
		c.report(diag.Diagnostic{
			Severity: diag.Warn,
			Code:     diag.SeekOutOfRange,
			Summary:  "Seek ignored",
			Evidence: map[string]any{"index": index, "length": len(c.frames)},
		})
		return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, index, len(c.frames))
	}
	c.index = index
	frame := c.frames[index]
	c.nowS = frame.TimeAt(index)
	c.ApplyFrame(frame)
	c.notifyPosition()
	return nil
}

// ApplyFrame pushes the present fields of frame to the scene and then runs
// the frame observers in registration order. Scene failures are logged and
// do not stop the remaining mutations.
func (c *Controller) ApplyFrame(frame Keyframe) {
	modelID, ok := c.resolveModel(frame)
	if !ok {
		c.log.Warn().Int("element_id", frame.ElementID).Msg("no model id; frame skipped")
		c.report(diag.Diagnostic{
			Severity:     diag.Warn,
			Code:         diag.ModelUnresolved,
			Summary:      "Frame skipped: no model loaded",
			LikelyCauses: []string{"IFC file not loaded yet", "keyframes carry no modelId"},
			Evidence:     map[string]any{"elementId": frame.ElementID},
		})
		return
	}
	el := frame.ElementID
	if frame.Empty() {
		c.log.Debug().Int("element_id", el).Msg("keyframe carries no changes")
	}

	if v := frame.Position; v != nil {
		c.check("position", el, c.scene.ApplyPosition(modelID, el, v.X, v.Y, v.Z))
	}
	if frame.Color != nil {
		c.check("color", el, c.scene.ApplyColor(modelID, el, *frame.Color, frame.Opacity))
	}
	if v := frame.Rotation; v != nil {
		c.check("rotation", el, c.scene.ApplyRotation(modelID, el, v.X, v.Y, v.Z))
	}
	if v := frame.Scale; v != nil {
		c.check("scale", el, c.scene.ApplyScale(modelID, el, v.X, v.Y, v.Z))
	}
	if frame.Visible != nil {
		c.check("visible", el, c.scene.SetVisibility(modelID, el, *frame.Visible))
	}

	for _, o := range c.observers {
		o.fn(frame)
	}
}

// Play starts or resumes playback from the current index.
func (c *Controller) Play() {
	if c.state == Playing {
		return
	}
	if len(c.frames) == 0 {
		c.log.Warn().Msg("no simulation data to play")
		c.report(diag.Diagnostic{Severity: diag.Warn, Code: diag.PlaybackEmpty, Summary: "Nothing to play"})
		return
	}
	c.state = Playing
	c.lastTick = c.clock.Now()
	if c.hooks.SimulationMode != nil {
		c.hooks.SimulationMode(true)
	}
	c.scheduleTick()
}

// Pause halts playback and keeps the current position.
func (c *Controller) Pause() {
	c.state = Paused
	c.cancelTick()
}

// Stop halts playback and seeks back to the first keyframe.
func (c *Controller) Stop() {
	c.state = Stopped
	c.index = 0
	c.nowS = 0
	c.cancelTick()
	if len(c.frames) > 0 {
		_ = c.GoToFrame(0)
	}
}

// SetPlaybackSpeed stores speed clamped to [MinSpeed, MaxSpeed]. It only
// affects ticks that have not run yet.
func (c *Controller) SetPlaybackSpeed(speed float64) {
	if math.IsNaN(speed) {
		return
	}
	c.speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))
	c.log.Debug().Float64("speed", c.speed).Msg("playback speed")
}

// OnFrameChange registers fn and returns a token for OffFrameChange.
func (c *Controller) OnFrameChange(fn FrameObserver) ObserverID {
	if fn == nil {
		return 0
	}
	c.nextObsID++
	c.observers = append(c.observers, observer{id: c.nextObsID, fn: fn})
	return c.nextObsID
}

// OffFrameChange removes a registered observer. Unknown ids are ignored.
func (c *Controller) OffFrameChange(id ObserverID) {
	for i, o := range c.observers {
		if o.id == id {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Controller) State() PlayerState { return c.state }
func (c *Controller) Index() int         { return c.index }
func (c *Controller) Time() float64      { return c.nowS }
func (c *Controller) Speed() float64     { return c.speed }
func (c *Controller) Len() int           { return len(c.frames) }

// Status returns a snapshot of the playback position.
func (c *Controller) Status() Status {
	s := Status{State: c.state, Index: c.index, Time: c.nowS, Speed: c.speed, Length: len(c.frames)}
	if c.modelID != nil {
		id := *c.modelID
		s.ModelID = &id
	}
	return s
}

// tick advances at most one keyframe. Ticks from an older generation were
// cancelled by pause/stop and are dropped.
func (c *Controller) tick(gen uint64) {
	if c.state != Playing || gen != c.gen {
		return
	}
	next := c.index + 1
	if next >= len(c.frames) {
		c.finish()
		return
	}

	now := c.clock.Now()
	elapsed := float64(now.Sub(c.lastTick)) / float64(time.Millisecond) * c.speed
	curT := c.frames[c.index].TimeAt(c.index)
	nextT := c.frames[next].TimeAt(next)
	wait := (nextT - curT) * 1000 / c.speed

	if elapsed >= wait {
		c.index = next
		c.nowS = nextT
		c.ApplyFrame(c.frames[next])
		c.lastTick = now
		c.notifyPosition()
		if c.index >= len(c.frames)-1 {
			c.finish()
			return
		}
	}
	c.scheduleTick()
}

func (c *Controller) finish() {
	c.log.Info().Int("frames", len(c.frames)).Msg("playback reached end of sequence")
	c.Stop()
	c.report(diag.Diagnostic{Severity: diag.Info, Code: diag.PlaybackDone, Summary: "Playback finished"})
	if c.hooks.Finished != nil {
		c.hooks.Finished()
	}
}

func (c *Controller) scheduleTick() {
	c.gen++
	gen := c.gen
	c.cancel = c.sched.RequestFrame(func() { c.tick(gen) })
}

func (c *Controller) cancelTick() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// resolveModel picks the frame's model, then the cached one, then asks the
// scene and caches the answer.
func (c *Controller) resolveModel(frame Keyframe) (int, bool) {
	if frame.ModelID != nil {
		return *frame.ModelID, true
	}
	if c.modelID != nil {
		return *c.modelID, true
	}
	id, ok := c.currentModel()
	if !ok {
		return 0, false
	}
	c.modelID = &id
	c.log.Info().Int("model_id", id).Msg("model id detected")
	return id, true
}

func (c *Controller) currentModel() (int, bool) {
	if c.scene == nil {
		return 0, false
	}
	return c.scene.CurrentModelID()
}

func (c *Controller) check(field string, elementID int, err error) {
	if err == nil {
		return
	}
	c.log.Error().Err(err).Str("field", field).Int("element_id", elementID).Msg("scene update failed")
	c.report(diag.Diagnostic{
		Severity: diag.Err,
		Code:     diag.SceneApplyFailed,
		Summary:  "Element update failed",
		Detail:   err.Error(),
		Evidence: map[string]any{"field": field, "elementId": elementID},
	})
}

func (c *Controller) notifyPosition() {
	if c.hooks.Position != nil {
		c.hooks.Position(c.index, c.nowS)
	}
}

func (c *Controller) report(d diag.Diagnostic) {
	if c.hooks.Report != nil {
		c.hooks.Report(d)
	}
}
