package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ifcviewer/internal/scene/fake"
	"github.com/coreman2200/ifcviewer/internal/sequence"
)

// seqsim plays a keyframe file against a printing scene, without a browser.
func main() {
	var (
		path  = flag.String("sequence", "", "path to keyframe JSON")
		fps   = flag.Int("fps", 60, "simulation refresh rate")
		speed = flag.Float64("speed", 1, "playback speed (0.1..5)")
		model = flag.Int("model", 0, "current model id reported by the scene; -1 for none")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *path == "" {
		log.Fatal().Msg("provide -sequence path to a keyframe JSON file")
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("read sequence")
	}

	sc := &fake.Printer{Out: os.Stdout}
	if *model >= 0 {
		sc.Model = model
	}

	done := make(chan struct{})
	h := sequence.Hooks{
		Position: func(index int, t float64) {
			log.Debug().Int("index", index).Float64("time", t).Msg("position")
		},
		Finished: func() { close(done) },
	}
	sess := sequence.NewSession(sc, h, *fps)

	var loadErr error
	sess.With(func(c *sequence.Controller) {
		c.OnFrameChange(func(k sequence.Keyframe) {
			log.Debug().Int("element_id", k.ElementID).Bool("empty", k.Empty()).Msg("frame applied")
		})
		if loadErr = c.LoadJSON(data); loadErr != nil {
			return
		}
		c.SetPlaybackSpeed(*speed)
		c.Play()
	})
	if loadErr != nil {
		log.Fatal().Err(loadErr).Msg("load")
	}
	st := sess.Status()
	if st.State != sequence.Playing {
		log.Fatal().Int("frames", st.Length).Msg("nothing to play")
	}

	start := time.Now()
	<-done
	log.Info().Dur("elapsed", time.Since(start)).Int("scene_calls", sc.Count).Msg("done")
}
