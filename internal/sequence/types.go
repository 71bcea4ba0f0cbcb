package sequence

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ifcviewer/internal/diagnostics"
)

// Vec3 is a position, rotation (radians) or scale triple.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Keyframe is one recorded state change for a single element.
// Optional fields are pointers so that zero values (model 0, visible=false,
// time 0) stay distinct from "absent".
type Keyframe struct {
	Time      *float64 `json:"time,omitempty"`
	ElementID int      `json:"elementId"`
	ModelID   *int     `json:"modelId,omitempty"`
	Position  *Vec3    `json:"position,omitempty"`
	Rotation  *Vec3    `json:"rotation,omitempty"`
	Scale     *Vec3    `json:"scale,omitempty"`
	Color     *string  `json:"color,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"` // only used together with Color
	Visible   *bool    `json:"visible,omitempty"`
}

// TimeAt returns the keyframe's simulated time, or index when it has none.
func (k Keyframe) TimeAt(index int) float64 {
	if k.Time != nil {
		return *k.Time
	}
	return float64(index)
}

// Empty reports whether the keyframe carries no visual change.
func (k Keyframe) Empty() bool {
	return k.Position == nil && k.Rotation == nil && k.Scale == nil && k.Color == nil && k.Visible == nil
}

// PlayerState enumerates controller states.
type PlayerState string

const (
	Stopped PlayerState = "stopped"
	Playing PlayerState = "playing"
	Paused  PlayerState = "paused"
)

// Scene is the set of mutators the controller drives. Implementations report
// lookup failures through the returned error.
type Scene interface {
	ApplyPosition(modelID, elementID int, x, y, z float64) error
	ApplyColor(modelID, elementID int, color string, opacity *float64) error
	ApplyRotation(modelID, elementID int, x, y, z float64) error
	ApplyScale(modelID, elementID int, x, y, z float64) error
	SetVisibility(modelID, elementID int, visible bool) error
	CurrentModelID() (int, bool)
}

// Hooks are optional callbacks into the UI shell. They run synchronously on
// the controller's goroutine and must not call back into the controller.
type Hooks struct {
	// SimulationMode is raised with true when playback starts.
	SimulationMode func(on bool)
	// Position reports the active index and simulated time after every move.
	Position func(index int, t float64)
	// Finished fires when playback reaches the end of the sequence by itself.
	Finished func()
	// Report receives recoverable problems for the diagnostics channel.
	Report func(d diagnostics.Diagnostic)
}

// FrameObserver is notified with every keyframe that was applied.
type FrameObserver func(frame Keyframe)

// ObserverID identifies a registered FrameObserver.
type ObserverID uint64

type observer struct {
	id ObserverID
	fn FrameObserver
}

// Clock reports wall-clock time.
type Clock interface {
	Now() time.Time
}

// Scheduler requests a single callback at the next display refresh.
// The returned cancel func must be safe to call more than once.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// Status is a read-only snapshot for scrub bars and time labels.
type Status struct {
	State   PlayerState `json:"state"`
	Index   int         `json:"index"`
	Time    float64     `json:"time"`
	Speed   float64     `json:"speed"`
	Length  int         `json:"length"`
	ModelID *int        `json:"modelId,omitempty"`
}

// Controller owns a keyframe sequence and walks it in wall-clock time,
// applying each due keyframe to a Scene.
type Controller struct {
	frames  []Keyframe
	index   int
	nowS    float64 // simulated time of the active keyframe
	state   PlayerState
	speed   float64
	modelID *int

	lastTick time.Time
	cancel   func()
	gen      uint64 // invalidates ticks fired before a pause/stop

	observers []observer
	nextObsID ObserverID

	// injection
	scene Scene
	hooks Hooks
	clock Clock
	sched Scheduler
	log   zerolog.Logger
}
