package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ifcviewer/internal/app"
	"github.com/coreman2200/ifcviewer/internal/config"
)

func main() {
	// ---- Flags (config.yaml and the environment override them) ----
	var (
		addr       = flag.String("addr", ":3000", "HTTP listen address")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		envFile    = flag.String("env", ".env", "optional .env file")
		sequence   = flag.String("sequence", "", "keyframe JSON to preload")
		watchSeq   = flag.Bool("watch", false, "reload the sequence file when it changes")
		fps        = flag.Int("fps", 60, "playback refresh rate")
		publicDir  = flag.String("public", "public", "static asset directory")
		level      = flag.String("log-level", "info", "debug | info | warn | error")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config: flags < config.yaml < environment ----
	cfg := config.Default()
	cfg.Addr = *addr
	cfg.LogLevel = *level
	cfg.Paths.Public = *publicDir
	cfg.Playback.SequencePath = *sequence
	cfg.Playback.Watch = *watchSeq
	cfg.Playback.FPS = *fps

	if err := config.LoadInto(*configPath, cfg); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", *configPath).Msg("no config file; using flags")
		} else {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		}
	}
	if err := config.LoadEnv(*envFile); err != nil {
		log.Warn().Err(err).Str("path", *envFile).Msg("env file load failed")
	}
	config.ApplyEnv(cfg)

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; keeping info")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	core, err := app.InitCore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init failed")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(core.Mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelFile).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	core.Close()
	_ = srv.Close()
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
