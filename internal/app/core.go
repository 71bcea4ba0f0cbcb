package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ifcviewer/internal/config"
	diag "github.com/coreman2200/ifcviewer/internal/diagnostics"
	"github.com/coreman2200/ifcviewer/internal/scene"
	"github.com/coreman2200/ifcviewer/internal/sequence"
	"github.com/coreman2200/ifcviewer/internal/watch"
	"github.com/coreman2200/ifcviewer/internal/web"
	"github.com/coreman2200/ifcviewer/internal/ws"
)

type Core struct {
	Scene   *scene.Scene
	Session *sequence.Session
	Hub     *ws.Hub
	Mux     *http.ServeMux
	cancel  context.CancelFunc
}

// InitCore wires scene, hub and playback session from cfg and mounts every
// route. Close stops the file watcher and any running playback.
func InitCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	// 1) Shared scene state and the client hub
	sc := scene.New()
	hub := ws.NewHub(sc)

	// 2) Playback session (hooks → hub)
	sess := sequence.NewSession(sc, hub.Hooks(), cfg.Playback.FPS)
	hub.Attach(sess)
	if cfg.Playback.Speed > 0 {
		sess.With(func(c *sequence.Controller) { c.SetPlaybackSpeed(cfg.Playback.Speed) })
	}

	// 3) Initial sequence
	if p := cfg.Playback.SequencePath; p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		if err := loadFrames(sess, b); err != nil {
			return nil, fmt.Errorf("load sequence %s: %w", p, err)
		}
		log.Info().Str("path", p).Int("frames", sess.Status().Length).Msg("sequence loaded")
	}

	// 4) Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/scene", hub.HandleSceneWS)
	mux.HandleFunc("GET /ws/diag", hub.HandleDiagWS)
	mux.HandleFunc("GET /ws/control", hub.HandleControlWS)
	mux.HandleFunc("GET /health", hub.HandleHealth)
	web.Register(mux, web.Options{
		Title:     cfg.Title,
		ModelFile: cfg.ModelFile,
		PublicDir: cfg.Paths.Public,
		FilesDir:  cfg.Paths.Files,
		DataDir:   cfg.Paths.Data,
	})

	ctx, cancel := context.WithCancel(ctx)
	core := &Core{Scene: sc, Session: sess, Hub: hub, Mux: mux, cancel: cancel}

	// 5) Hot reload
	if cfg.Playback.Watch && cfg.Playback.SequencePath != "" {
		go func() {
			err := watch.File(ctx, cfg.Playback.SequencePath, watch.DefaultDebounce, core.reload)
			if err != nil {
				log.Error().Err(err).Msg("sequence watcher stopped")
			}
		}()
	}
	return core, nil
}

// reload swaps in edited keyframes. A bad file leaves the loaded sequence in
// place.
func (c *Core) reload(b []byte) {
	if err := loadFrames(c.Session, b); err != nil {
		c.Hub.PushDiag(diag.Diagnostic{
			Severity: diag.Err, Code: diag.ReloadFailed, Summary: "Sequence reload failed",
			Detail: err.Error(),
		})
		return
	}
	c.Hub.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.LoadOK, Summary: "Simulation data reloaded"})
}

// loadFrames decodes before taking the session so a bad file never stops
// the current playback.
func loadFrames(s *sequence.Session, b []byte) error {
	frames, err := sequence.Decode(b)
	if err != nil {
		return err
	}
	s.With(func(c *sequence.Controller) { c.Load(frames) })
	return nil
}

func (c *Core) Close() {
	c.cancel()
	c.Session.With(func(ctl *sequence.Controller) { ctl.Pause() })
}
