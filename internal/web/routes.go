package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Options configures the page shells and asset directories.
type Options struct {
	Title     string
	ModelFile string
	PublicDir string
	FilesDir  string
	DataDir   string
}

type pageData struct {
	Title     string
	ModelFile string
}

// Register mounts the page shells, static assets and the time-series API
// on mux.
func Register(mux *http.ServeMux, o Options) {
	l := log.With().Str("component", "web").Logger()
	title := o.Title
	if title == "" {
		title = "IFC Viewer"
	}

	mux.HandleFunc("GET /{$}", page(l, "index.html", pageData{Title: title, ModelFile: o.ModelFile}))
	mux.HandleFunc("GET /color-viewer", page(l, "color-viewer.html", pageData{Title: title + " - Color Viewer"}))
	mux.HandleFunc("GET /simulator", page(l, "simulator.html", pageData{Title: "Building Energy Simulator"}))
	mux.HandleFunc("GET /time-slider", page(l, "time-slider.html", pageData{Title: "Time Slider Test - 0~8000 Step 0.1"}))
	mux.HandleFunc("GET /api/timeseries", handleTimeseries)

	if o.FilesDir != "" {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(o.FilesDir))))
	}
	if o.DataDir != "" {
		mux.Handle("GET /data/", http.StripPrefix("/data/", http.FileServer(http.Dir(o.DataDir))))
	}
	if o.PublicDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(o.PublicDir)))
	}
}

func page(l zerolog.Logger, name string, data pageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
			l.Error().Err(err).Str("template", name).Msg("render page")
			http.Error(w, "Template execution error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

const (
	seriesMax         = 80000
	seriesDefaultFrom = 0
	seriesDefaultTo   = 200
)

// Sample is one point of the dummy time series.
type Sample struct {
	Index     int     `json:"index"`
	Step      string  `json:"step"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

type Series struct {
	From  int      `json:"from"`
	To    int      `json:"to"`
	Count int      `json:"count"`
	Data  []Sample `json:"data"`
}

// BuildSeries returns samples from..to inclusive, both clamped to
// [0, 80000]. Each index is a tenth of a simulated minute.
func BuildSeries(from, to int) Series {
	from = clampInt(from, 0, seriesMax)
	to = clampInt(to, 0, seriesMax)
	s := Series{From: from, To: to, Data: []Sample{}}
	for i := from; i <= to; i++ {
		s.Data = append(s.Data, Sample{
			Index:     i,
			Step:      strconv.FormatFloat(float64(i)/10, 'f', 1, 64),
			Value:     math.Sin(float64(i)/200)*50 + 50,
			Timestamp: fmt.Sprintf("time: %d:%02d", i/600, (i%600)/10),
		})
	}
	s.Count = len(s.Data)
	return s
}

func handleTimeseries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s := BuildSeries(intParam(q.Get("from"), seriesDefaultFrom), intParam(q.Get("to"), seriesDefaultTo))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s)
}

// intParam parses a query number, clamped to the series range before the
// int conversion so huge values land on the bound.
func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return def
	}
	return int(math.Max(0, math.Min(seriesMax, f)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
