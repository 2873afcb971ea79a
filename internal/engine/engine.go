// Package engine runs transform passes on behalf of the consumer loop. A pass
// is described by a Script; the engine reports success, failure, or a launch
// error that the loop treats as fatal.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrLaunch means the engine could not be started at all (e.g. binary missing).
var ErrLaunch = eris.New("engine: launch failed")

// Script is the job description handed to the engine.
type Script struct {
	RunID           string    `yaml:"run_id"`
	CreatedAt       time.Time `yaml:"created_at"`
	InputPrefix     string    `yaml:"input_prefix"`
	ProcessedPrefix string    `yaml:"processed_prefix"`
	Pattern         string    `yaml:"pattern"`
	WarehouseTable  string    `yaml:"warehouse_table"`
	RelationalTable string    `yaml:"relational_table"`
}

// Result is what the engine observed about a run.
type Result struct {
	OK       bool
	ExitCode int
	Stdout   string
	// Stderr holds the stderr lines that survived quiet-marker filtering.
	Stderr  []string
	Elapsed time.Duration
}

// Engine executes one transform pass.
type Engine interface {
	Run(ctx context.Context, s Script) (Result, error)
}

// WriteScript stores s as YAML under dir and returns the file path.
func WriteScript(dir string, s Script) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "engine: create script dir %s", dir)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", eris.Wrap(err, "engine: marshal script")
	}
	p := filepath.Join(dir, "retail_job_"+s.RunID+".yaml")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "engine: write script %s", p)
	}
	return p, nil
}

// ReadScript loads a script written by WriteScript.
func ReadScript(path string) (Script, error) {
	var s Script
	data, err := os.ReadFile(path)
	if err != nil {
		return s, eris.Wrapf(err, "engine: read script %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrapf(err, "engine: parse script %s", path)
	}
	if s.RunID == "" {
		return s, eris.Errorf("engine: script %s has no run_id", path)
	}
	return s, nil
}
