package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ifcviewer/internal/scene"
	"github.com/coreman2200/ifcviewer/internal/sequence"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	sc := scene.New()
	h := NewHub(sc)
	h.Attach(sequence.NewSession(sc, h.Hooks(), 120))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/scene", h.HandleSceneWS)
	mux.HandleFunc("/ws/diag", h.HandleDiagWS)
	mux.HandleFunc("/ws/control", h.HandleControlWS)
	mux.HandleFunc("/health", h.HandleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) reply {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var rep reply
	require.NoError(t, json.Unmarshal(data, &rep))
	return rep
}

// readUntil returns the first envelope of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == kind {
			return env.Data
		}
	}
}

func TestControlLoadSeekAndEdit(t *testing.T) {
	h, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	rep := send(t, ctl, `{"cmd":"modelLoaded","name":"tessellated-item.ifc"}`)
	require.True(t, rep.OK, rep.Error)
	require.NotNil(t, rep.ModelID)
	assert.Equal(t, 0, *rep.ModelID)

	rep = send(t, ctl, `{"cmd":"load","frames":[{"time":0,"elementId":5,"color":"#ff0000"},{"time":1,"elementId":5,"visible":false}]}`)
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, 2, rep.Status.Length)
	assert.Equal(t, sequence.Stopped, rep.Status.State)

	rep = send(t, ctl, `{"cmd":"seek","index":1}`)
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, 1, rep.Status.Index)
	e, ok := h.Scene.Element(0, 5)
	require.True(t, ok)
	assert.False(t, e.Visible)

	rep = send(t, ctl, `{"cmd":"seek","index":7}`)
	assert.False(t, rep.OK)
	assert.Equal(t, 1, rep.Status.Index)

	rep = send(t, ctl, `{"cmd":"color","elementId":9,"color":"blue","opacity":0.26}`)
	require.True(t, rep.OK, rep.Error)
	e, ok = h.Scene.Element(0, 9)
	require.True(t, ok)
	assert.Equal(t, "#0000ff", e.Color)
	assert.True(t, e.Transparent)

	rep = send(t, ctl, `{"cmd":"position","elementId":9,"value":{"x":1,"y":0,"z":2}}`)
	require.True(t, rep.OK, rep.Error)
	e, _ = h.Scene.Element(0, 9)
	assert.Equal(t, sequence.Vec3{X: 1, Z: 2}, e.Position)

	rep = send(t, ctl, `{"cmd":"position","elementId":9}`)
	assert.False(t, rep.OK)
}

func TestControlRejectsBadInput(t *testing.T) {
	_, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	rep := send(t, ctl, `{"cmd":"load","frames":"not an array"}`)
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Error, "invalid simulation data format")

	rep = send(t, ctl, `{"cmd":"dance"}`)
	assert.False(t, rep.OK)

	rep = send(t, ctl, `not json`)
	assert.False(t, rep.OK)

	rep = send(t, ctl, `{"cmd":"visibility","elementId":1,"visible":true}`)
	assert.False(t, rep.OK, "no model loaded yet")
}

func TestControlSpeedAndMode(t *testing.T) {
	h, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	rep := send(t, ctl, `{"cmd":"speed","speed":10}`)
	require.True(t, rep.OK)
	assert.Equal(t, 5.0, rep.Status.Speed)

	rep = send(t, ctl, `{"cmd":"mode"}`)
	assert.True(t, rep.SimulationMode)
	rep = send(t, ctl, `{"cmd":"mode","on":true}`)
	assert.True(t, rep.SimulationMode)
	rep = send(t, ctl, `{"cmd":"mode"}`)
	assert.False(t, rep.SimulationMode)
	assert.False(t, h.SimulationMode())
}

func TestPlayEntersSimulationModeAndStopKeepsIt(t *testing.T) {
	h, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	send(t, ctl, `{"cmd":"modelLoaded","name":"a.ifc"}`)
	send(t, ctl, `{"cmd":"load","frames":[{"time":0,"elementId":1},{"time":60,"elementId":2}]}`)
	rep := send(t, ctl, `{"cmd":"play"}`)
	assert.Equal(t, sequence.Playing, rep.Status.State)
	assert.True(t, rep.SimulationMode)

	rep = send(t, ctl, `{"cmd":"pause"}`)
	assert.Equal(t, sequence.Paused, rep.Status.State)

	rep = send(t, ctl, `{"cmd":"stop"}`)
	assert.Equal(t, sequence.Stopped, rep.Status.State)
	assert.True(t, h.SimulationMode())
}

func TestSceneClientReceivesSnapshotAndChanges(t *testing.T) {
	h, srv := newTestHub(t)
	m := h.Scene.AddModel("a.ifc", nil)
	require.NoError(t, h.Scene.SetVisibility(m, 3, false))

	sc := dial(t, srv, "/ws/scene")
	raw := readUntil(t, sc, "snapshot")
	var snap struct {
		Elements []scene.Element `json:"elements"`
		Status   sequence.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, 3, snap.Elements[0].ElementID)

	ctl := dial(t, srv, "/ws/control")
	send(t, ctl, `{"cmd":"color","elementId":3,"color":"#0f0"}`)

	raw = readUntil(t, sc, "change")
	var ch scene.Change
	require.NoError(t, json.Unmarshal(raw, &ch))
	assert.Equal(t, scene.ChangeColor, ch.Kind)
	require.NotNil(t, ch.Element)
	assert.Equal(t, "#00ff00", ch.Element.Color)
}

func TestDiagClientReceivesReports(t *testing.T) {
	h, srv := newTestHub(t)
	dc := dial(t, srv, "/ws/diag")
	ctl := dial(t, srv, "/ws/control")

	// registration happens after the upgrade response
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.diagClients) == 1
	}, 2*time.Second, 5*time.Millisecond)

	send(t, ctl, `{"cmd":"seek","index":3}`)
	dc.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := dc.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "SEEK.OUT_OF_RANGE")
}

func TestHealth(t *testing.T) {
	_, srv := newTestHub(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "uptime_s")
	assert.Contains(t, body, "playback")
	assert.Equal(t, false, body["simulation"])
}

func TestControlDeleteRestoreAndResetColors(t *testing.T) {
	h, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	send(t, ctl, `{"cmd":"modelLoaded","name":"a.ifc","elementIds":[1898,1926]}`)
	rep := send(t, ctl, `{"cmd":"delete","elementId":1898}`)
	require.True(t, rep.OK, rep.Error)
	e, _ := h.Scene.Element(0, 1898)
	assert.False(t, e.Visible)
	assert.False(t, send(t, ctl, `{"cmd":"delete","elementId":5}`).OK, "undeclared element")

	rep = send(t, ctl, `{"cmd":"restoreDeleted"}`)
	require.True(t, rep.OK, rep.Error)
	require.NotNil(t, rep.Count)
	assert.Equal(t, 1, *rep.Count)
	e, _ = h.Scene.Element(0, 1898)
	assert.True(t, e.Visible)

	send(t, ctl, `{"cmd":"color","elementId":1926,"color":"red"}`)
	rep = send(t, ctl, `{"cmd":"resetAllColors"}`)
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, 1, *rep.Count)
	e, _ = h.Scene.Element(0, 1926)
	assert.Empty(t, e.Color)
}

func TestControlRampLoadsColorSequence(t *testing.T) {
	h, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")

	send(t, ctl, `{"cmd":"modelLoaded","name":"a.ifc"}`)
	rep := send(t, ctl, `{"cmd":"ramp","elementIds":[1898,1926],"startColor":"#0000ff","endColor":"#ff0000","opacity":0.5,"steps":4}`)
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, 8, rep.Status.Length)
	assert.Equal(t, 8, *rep.Count)

	rep = send(t, ctl, `{"cmd":"seek","index":7}`)
	require.True(t, rep.OK, rep.Error)
	e, ok := h.Scene.Element(0, 1926)
	require.True(t, ok)
	assert.Equal(t, "#ff0000", e.Color)
	assert.Equal(t, 0.5, e.Opacity)

	assert.False(t, send(t, ctl, `{"cmd":"ramp","startColor":"#000000","endColor":"#ffffff"}`).OK)
}

func TestSceneClientReceivesAppliedFrames(t *testing.T) {
	_, srv := newTestHub(t)
	ctl := dial(t, srv, "/ws/control")
	send(t, ctl, `{"cmd":"modelLoaded","name":"a.ifc"}`)
	send(t, ctl, `{"cmd":"load","frames":[{"elementId":4},{"elementId":8,"visible":false}]}`)

	sc := dial(t, srv, "/ws/scene")
	readUntil(t, sc, "snapshot")

	send(t, ctl, `{"cmd":"seek","index":1}`)
	raw := readUntil(t, sc, "frame")
	var k sequence.Keyframe
	require.NoError(t, json.Unmarshal(raw, &k))
	assert.Equal(t, 8, k.ElementID)
	require.NotNil(t, k.Visible)
	assert.False(t, *k.Visible)
}
