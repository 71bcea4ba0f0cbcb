package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce absorbs the burst of events editors emit for one save.
const DefaultDebounce = 150 * time.Millisecond

// File calls onChange with the new contents of path whenever it is written,
// created or renamed into place. The parent directory is watched so atomic
// replace-by-rename saves are seen. It blocks until ctx is done.
func File(ctx context.Context, path string, debounce time.Duration, onChange func([]byte)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	l := log.With().Str("component", "watch").Str("path", abs).Logger()
	l.Info().Msg("watching sequence file")

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			b, err := os.ReadFile(abs)
			if err != nil {
				l.Warn().Err(err).Msg("reload read failed")
				continue
			}
			l.Info().Int("bytes", len(b)).Msg("sequence file changed")
			onChange(b)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("watcher error")
		}
	}
}
