package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/ifcviewer/internal/diagnostics"
	"github.com/coreman2200/ifcviewer/internal/scene"
	"github.com/coreman2200/ifcviewer/internal/sequence"
)

const writeWait = 200 * time.Millisecond

type client struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) write(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub fans scene changes, playback position and diagnostics out to browser
// clients and applies their control commands.
type Hub struct {
	mu      sync.RWMutex
	Scene   *scene.Scene
	Session *sequence.Session

	clients     map[*client]bool
	diagClients map[*client]bool
	simMode     bool
	startTime   time.Time

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub subscribes to sc. A session must be attached before serving; build
// it with Hooks so playback events reach the clients.
func NewHub(sc *scene.Scene) *Hub {
	h := &Hub{
		Scene:       sc,
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
		startTime:   time.Now(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:         log.With().Str("component", "ws").Logger(),
	}
	sc.Subscribe(func(c scene.Change) { h.broadcast("change", c) })
	return h
}

// Attach makes s the hub's playback session and streams every applied
// keyframe to the scene clients.
func (h *Hub) Attach(s *sequence.Session) {
	h.Session = s
	s.With(func(c *sequence.Controller) {
		c.OnFrameChange(func(k sequence.Keyframe) { h.broadcast("frame", k) })
	})
}

// Hooks routes controller signals to the connected clients. They are called
// with the session lock held and never take it.
func (h *Hub) Hooks() sequence.Hooks {
	return sequence.Hooks{
		SimulationMode: h.SetSimulationMode,
		Position: func(index int, t float64) {
			h.broadcast("position", map[string]any{"index": index, "time": t})
		},
		Finished: func() { h.broadcast("finished", nil) },
		Report:   h.PushDiag,
	}
}

// SetSimulationMode sets the presentation flag and tells the clients.
func (h *Hub) SetSimulationMode(on bool) {
	h.mu.Lock()
	changed := h.simMode != on
	h.simMode = on
	h.mu.Unlock()
	if changed {
		h.broadcast("mode", map[string]bool{"simulation": on})
	}
}

func (h *Hub) SimulationMode() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.simMode
}

func (h *Hub) HandleSceneWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrade(w, r)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.sendSnapshot(c)

	go h.drain(c, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrade(w, r)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.diagClients[c] = true
	h.mu.Unlock()

	go h.drain(c, h.diagClients)
}

func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrade(w, r)
	if err != nil {
		return
	}
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			h.log.Debug().Str("client", c.id).Err(err).Msg("control closed")
			return
		}
		var msg controlMsg
		rep := reply{OK: true}
		if err := json.Unmarshal(data, &msg); err != nil {
			rep = reply{Error: "invalid JSON: " + err.Error()}
		} else if res, err := h.applyControl(msg); err != nil {
			h.log.Warn().Str("client", c.id).Str("cmd", msg.Cmd).Err(err).Msg("control rejected")
			rep = reply{Error: err.Error()}
		} else {
			rep.ModelID = res.ModelID
			rep.Count = res.Count
		}
		rep.Cmd = msg.Cmd
		rep.Status = h.Session.Status()
		rep.SimulationMode = h.SimulationMode()
		b, _ := json.Marshal(rep)
		if err := c.write(b); err != nil {
			return
		}
		h.broadcast("status", rep.Status)
	}
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := map[string]any{
		"uptime_s":     time.Since(h.startTime).Seconds(),
		"clients":      len(h.clients),
		"diag_clients": len(h.diagClients),
		"simulation":   h.simMode,
		"models":       len(h.Scene.Models()),
	}
	h.mu.RUnlock()
	resp["playback"] = h.Session.Status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type controlMsg struct {
	Cmd string `json:"cmd"`

	Frames json.RawMessage `json:"frames,omitempty"`
	Index  *int            `json:"index,omitempty"`
	Speed  *float64        `json:"speed,omitempty"`
	On     *bool           `json:"on,omitempty"` // mode; nil toggles

	Name       string `json:"name,omitempty"`
	ElementIDs []int  `json:"elementIds,omitempty"`

	ModelID   *int           `json:"modelId,omitempty"`
	ElementID *int           `json:"elementId,omitempty"`
	Value     *sequence.Vec3 `json:"value,omitempty"`
	Color     string         `json:"color,omitempty"`
	Opacity   *float64       `json:"opacity,omitempty"`
	Visible   *bool          `json:"visible,omitempty"`

	StartColor string `json:"startColor,omitempty"`
	EndColor   string `json:"endColor,omitempty"`
	Steps      int    `json:"steps,omitempty"`
}

type reply struct {
	Cmd            string          `json:"cmd"`
	OK             bool            `json:"ok"`
	Error          string          `json:"error,omitempty"`
	ModelID        *int            `json:"modelId,omitempty"`
	Count          *int            `json:"count,omitempty"`
	Status         sequence.Status `json:"status"`
	SimulationMode bool            `json:"simulationMode"`
}

var errMissing = errors.New("missing field")

type result struct {
	ModelID *int
	Count   *int
}

// applyControl runs one command. modelLoaded reports the new model id; the
// bulk element commands report how many elements they touched.
func (h *Hub) applyControl(msg controlMsg) (result, error) {
	var res result
	switch msg.Cmd {
	case "load":
		var err error
		h.Session.With(func(c *sequence.Controller) { err = c.LoadJSON(msg.Frames) })
		if err == nil {
			h.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.LoadOK, Summary: "Simulation data loaded"})
		}
		return res, err
	case "ramp":
		opacity := 1.0
		if msg.Opacity != nil {
			opacity = *msg.Opacity
		}
		frames, err := sequence.GenerateColorRamp(msg.ElementIDs, msg.StartColor, msg.EndColor, opacity, msg.Steps)
		if err != nil {
			return res, err
		}
		h.Session.With(func(c *sequence.Controller) { c.Load(frames) })
		n := len(frames)
		res.Count = &n
	case "play":
		h.Session.With(func(c *sequence.Controller) { c.Play() })
	case "pause":
		h.Session.With(func(c *sequence.Controller) { c.Pause() })
	case "stop":
		h.Session.With(func(c *sequence.Controller) { c.Stop() })
	case "seek":
		if msg.Index == nil {
			return res, fmt.Errorf("%w: index", errMissing)
		}
		var err error
		h.Session.With(func(c *sequence.Controller) { err = c.GoToFrame(*msg.Index) })
		return res, err
	case "speed":
		if msg.Speed == nil {
			return res, fmt.Errorf("%w: speed", errMissing)
		}
		h.Session.With(func(c *sequence.Controller) { c.SetPlaybackSpeed(*msg.Speed) })
	case "mode":
		on := !h.SimulationMode()
		if msg.On != nil {
			on = *msg.On
		}
		h.SetSimulationMode(on)
	case "modelLoaded":
		h.Scene.Clear()
		id := h.Scene.AddModel(msg.Name, msg.ElementIDs)
		h.log.Info().Int("model_id", id).Str("name", msg.Name).Int("elements", len(msg.ElementIDs)).Msg("model loaded")
		res.ModelID = &id
	case "modelCleared":
		h.Scene.Clear()
	case "resetAllColors":
		n := h.Scene.ResetAllColors()
		res.Count = &n
	case "restoreDeleted":
		model, err := h.targetModel(msg)
		if err != nil {
			return res, err
		}
		n, err := h.Scene.RestoreDeleted(model)
		if err != nil {
			return res, err
		}
		res.Count = &n
	case "color", "position", "rotation", "scale", "visibility", "resetColor", "resetPosition", "delete":
		return res, h.applyElement(msg)
	default:
		h.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: diag.ControlUnknown, Summary: "Unknown control command",
			Evidence: map[string]any{"cmd": msg.Cmd},
		})
		return res, fmt.Errorf("unknown command %q", msg.Cmd)
	}
	return res, nil
}

// targetModel is the message's model, defaulting to the current one.
func (h *Hub) targetModel(msg controlMsg) (int, error) {
	if msg.ModelID != nil {
		return *msg.ModelID, nil
	}
	if id, ok := h.Scene.CurrentModelID(); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: no model loaded", scene.ErrModelNotFound)
}

// applyElement handles direct edits from the color viewer. The target model
// defaults to the current one.
func (h *Hub) applyElement(msg controlMsg) error {
	if msg.ElementID == nil {
		return fmt.Errorf("%w: elementId", errMissing)
	}
	el := *msg.ElementID
	model, err := h.targetModel(msg)
	if err != nil {
		return err
	}

	switch msg.Cmd {
	case "color":
		return h.Scene.ApplyColor(model, el, msg.Color, msg.Opacity)
	case "visibility":
		if msg.Visible == nil {
			return fmt.Errorf("%w: visible", errMissing)
		}
		return h.Scene.SetVisibility(model, el, *msg.Visible)
	case "resetColor":
		return h.Scene.ResetColor(model, el)
	case "resetPosition":
		return h.Scene.ResetPosition(model, el)
	case "delete":
		return h.Scene.Delete(model, el)
	}
	if msg.Value == nil {
		return fmt.Errorf("%w: value", errMissing)
	}
	v := *msg.Value
	switch msg.Cmd {
	case "position":
		return h.Scene.ApplyPosition(model, el, v.X, v.Y, v.Z)
	case "rotation":
		return h.Scene.ApplyRotation(model, el, v.X, v.Y, v.Z)
	default:
		return h.Scene.ApplyScale(model, el, v.X, v.Y, v.Z)
	}
}

// PushDiag sends d to every diagnostics client.
func (h *Hub) PushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.diagClients {
		_ = c.write(b)
	}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (h *Hub) broadcast(kind string, data any) {
	b, _ := json.Marshal(envelope{Type: kind, Data: data})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.write(b); err != nil {
			h.log.Debug().Err(err).Str("client", c.id).Msg("write scene update")
		}
	}
}

func (h *Hub) sendSnapshot(c *client) {
	snap := map[string]any{
		"models":         h.Scene.Models(),
		"elements":       h.Scene.Snapshot(),
		"status":         h.Session.Status(),
		"simulationMode": h.SimulationMode(),
	}
	b, _ := json.Marshal(envelope{Type: "snapshot", Data: snap})
	_ = c.write(b)
}

func (h *Hub) upgrade(w http.ResponseWriter, r *http.Request) (*client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("path", r.URL.Path).Msg("upgrade failed")
		return nil, err
	}
	c := &client{id: uuid.New().String(), conn: conn}
	h.log.Debug().Str("client", c.id).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("client connected")
	return c, nil
}

// drain reads until the peer goes away, then unregisters c from set.
func (h *Hub) drain(c *client, set map[*client]bool) {
	defer func() {
		h.mu.Lock()
		delete(set, c)
		h.mu.Unlock()
		c.conn.Close()
		h.log.Debug().Str("client", c.id).Msg("client disconnected")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
