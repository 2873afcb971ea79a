package engine

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/config"
)

// stdoutTail is how many trailing stdout lines a failed run logs.
const stdoutTail = 20

// Exec submits a pass to an external command:
//
//	command args... --master M --driver-class-path CP script.yaml
//
// An empty command runs the current executable, whose transform subcommand
// performs the pass.
type Exec struct {
	command   string
	args      []string
	master    string
	classpath string
	scriptDir string
	quiet     []string
	waitDelay time.Duration
}

// NewExec creates an Exec engine from configuration.
func NewExec(cfg config.EngineConfig) *Exec {
	return &Exec{
		command:   cfg.Command,
		args:      cfg.Args,
		master:    cfg.Master,
		classpath: cfg.DriverClasspath,
		scriptDir: cfg.ScriptDir,
		quiet:     cfg.QuietMarkers,
		waitDelay: 5 * time.Second,
	}
}

// Run implements Engine. The script file is removed after a successful run
// and kept for inspection otherwise.
func (e *Exec) Run(ctx context.Context, s Script) (Result, error) {
	log := zap.L().With(zap.String("component", "engine.exec"), zap.String("run_id", s.RunID))

	command := e.command
	if command == "" {
		self, err := os.Executable()
		if err != nil {
			return Result{}, eris.Wrapf(ErrLaunch, "resolve executable: %v", err)
		}
		command = self
	}

	script, err := WriteScript(e.scriptDir, s)
	if err != nil {
		return Result{}, err
	}

	args := append([]string{}, e.args...)
	args = append(args, "--master", e.master, "--driver-class-path", e.classpath, script)

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = e.waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Elapsed: time.Since(start),
		Stdout:  stdout.String(),
		Stderr:  filterLines(stderr.String(), e.quiet),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.OK = true
		for _, line := range res.Stderr {
			log.Warn("engine stderr", zap.String("line", line))
		}
		if err := os.Remove(script); err != nil {
			log.Debug("failed to remove job script", zap.String("script", script), zap.Error(err))
		}
		return res, nil

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		e.logFailure(log, res)
		return res, eris.Wrapf(ctx.Err(), "engine: run %s timed out after %s", s.RunID, res.Elapsed.Round(time.Millisecond))

	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		e.logFailure(log, res)
		return res, eris.Errorf("engine: run %s exited with status %d", s.RunID, res.ExitCode)

	case isLaunchError(runErr):
		return res, eris.Wrapf(ErrLaunch, "%s: %v", command, runErr)

	default:
		return res, eris.Wrapf(runErr, "engine: run %s", s.RunID)
	}
}

// logFailure logs the filtered stderr and the last stdoutTail stdout lines.
func (e *Exec) logFailure(log *zap.Logger, res Result) {
	for _, line := range res.Stderr {
		log.Error("engine stderr", zap.String("line", line))
	}
	for _, line := range tail(filterLines(res.Stdout, e.quiet), stdoutTail) {
		log.Error("engine stdout", zap.String("line", line))
	}
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func isLaunchError(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// filterLines splits s into non-empty lines, dropping any that contain one
// of the markers (case-insensitive).
func filterLines(s string, markers []string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || quiet(line, markers) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func quiet(line string, markers []string) bool {
	lower := strings.ToLower(line)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
