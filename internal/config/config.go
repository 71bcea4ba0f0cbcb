package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Paths struct {
	Public string `yaml:"public"` // static js/css
	Files  string `yaml:"files"`  // IFC files served under /files
	Data   string `yaml:"data"`   // simulation chunks served under /data
}

type Playback struct {
	SequencePath string  `yaml:"sequence_path"`
	Watch        bool    `yaml:"watch"`
	FPS          int     `yaml:"fps"`
	Speed        float64 `yaml:"speed"`
}

type Config struct {
	Addr      string   `yaml:"addr"`
	LogLevel  string   `yaml:"log_level"`
	ModelFile string   `yaml:"model_file"` // IFC file the index page opens
	Title     string   `yaml:"title,omitempty"`
	Paths     Paths    `yaml:"paths"`
	Playback  Playback `yaml:"playback"`
}

func Default() *Config {
	return &Config{
		Addr:      ":3000",
		LogLevel:  "info",
		ModelFile: "tessellated-item.ifc",
		Title:     "IFC Viewer",
		Paths:     Paths{Public: "public", Files: ".", Data: "public/data"},
		Playback:  Playback{FPS: 60, Speed: 1.0},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if err := LoadInto(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadInto overlays the keys present in path onto c. Keys the file does not
// mention keep their current values, so flags set before the call survive.
// On error c is unchanged.
func LoadInto(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	next := *c
	if err := yaml.Unmarshal(b, &next); err != nil {
		return err
	}
	*c = next
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error; existing variables win.
func LoadEnv(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides c from PORT, IFCVIEWER_LOG_LEVEL and
// IFCVIEWER_SEQUENCE.
func ApplyEnv(c *Config) {
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		if _, err := strconv.Atoi(p); err == nil {
			c.Addr = ":" + p
		} else {
			c.Addr = p
		}
	}
	if v := os.Getenv("IFCVIEWER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("IFCVIEWER_SEQUENCE"); v != "" {
		c.Playback.SequencePath = v
	}
}
