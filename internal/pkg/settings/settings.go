// Package settings loads process settings from a JSON or YAML file, a
// .env file and PLANNER_* environment variables, in increasing precedence.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/mongodb"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PLANNER_"

// Settings configures the planner process.
type Settings struct {
	WorkDir     string              `json:"WorkDir" yaml:"work_dir"`
	TechDir     string              `json:"TechDir" yaml:"tech_dir"`
	Solvers     map[string]string   `json:"Solvers" yaml:"solvers"`
	Log         logging.Config      `json:"Log" yaml:"log"`
	MetricsFile string              `json:"MetricsFile" yaml:"metrics_file"`
	MongoDB     *mongodb.Config     `json:"MongoDB" yaml:"mongodb"`
	NATS        *natshandler.Config `json:"NATS" yaml:"nats"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		WorkDir: "runs",
		TechDir: "technologies",
		Solvers: map[string]string{},
		Log:     logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads path, which may be empty, then envFile, which may be missing,
// then the process environment.
func Load(path, envFile string) (Settings, error) {
	s := Default()
	if path != "" {
		if err := s.readFile(path); err != nil {
			return Settings{}, err
		}
	}
	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Settings{}, fmt.Errorf("settings: %s: %w", envFile, err)
		}
	}
	s.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return s, nil
}

func (s *Settings) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, s)
	default:
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return fmt.Errorf("settings: %s: %w", path, err)
	}
	if s.Solvers == nil {
		s.Solvers = map[string]string{}
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("WORK_DIR", &s.WorkDir)
	str("TECH_DIR", &s.TechDir)
	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)
	str("METRICS_FILE", &s.MetricsFile)

	for _, name := range []string{"cbc", "glpk", "highs", "gurobi"} {
		if v, ok := lookup(envPrefix + "SOLVER_" + strings.ToUpper(name)); ok {
			s.Solvers[name] = v
		}
	}
	if v, ok := lookup(envPrefix + "MONGODB_URI"); ok {
		if s.MongoDB == nil {
			s.MongoDB = &mongodb.Config{}
		}
		s.MongoDB.URI = v
	}
	if v, ok := lookup(envPrefix + "NATS_URL"); ok {
		if s.NATS == nil {
			s.NATS = &natshandler.Config{}
		}
		s.NATS.Server = v
	}
}

// SolverBinary returns the configured binary for a solver, empty for the
// driver default.
func (s Settings) SolverBinary(name string) string {
	return s.Solvers[name]
}
