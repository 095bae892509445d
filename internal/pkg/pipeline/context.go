package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/dump"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/sirupsen/logrus"
)

// RunContext owns the directories and log handle of one run. Every path
// lives under <work>/<token>, so concurrent runs never share files.
type RunContext struct {
	Token    uuid.UUID
	Dir      string
	LogDir   string
	DumpDir  string
	InputDir string
	Log      *logrus.Entry

	logFile *os.File
}

// NewRunContext creates the run directories and a logger that also writes
// to log/run.log.
func NewRunContext(workDir string, token uuid.UUID, base *logrus.Logger) (*RunContext, error) {
	dir := filepath.Join(workDir, token.String())
	rc := &RunContext{
		Token:    token,
		Dir:      dir,
		LogDir:   filepath.Join(dir, "log"),
		DumpDir:  filepath.Join(dir, "dump"),
		InputDir: filepath.Join(dir, "input"),
	}
	for _, d := range []string{rc.LogDir, rc.DumpDir, rc.InputDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("run directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Join(rc.LogDir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	rc.logFile = f
	rc.Log = logging.Component(logging.Tee(base, f), "pipeline").WithField("token", token.String())
	return rc, nil
}

// Close releases the run log.
func (rc *RunContext) Close() error {
	if rc.logFile == nil {
		return nil
	}
	err := rc.logFile.Close()
	rc.logFile = nil
	return err
}

// SolverLogPath is where the solver output is captured.
func (rc *RunContext) SolverLogPath() string {
	return filepath.Join(rc.LogDir, "solver.log")
}

// LPPath is the LP artifact of the model called name.
func (rc *RunContext) LPPath(name string) string {
	return filepath.Join(rc.DumpDir, name+".lp")
}

// SolutionPath is where the solver writes its solution.
func (rc *RunContext) SolutionPath(name string) string {
	return filepath.Join(rc.DumpDir, name+".sol")
}

// DumpPath is the network snapshot written after a successful solve.
func (rc *RunContext) DumpPath() string {
	return filepath.Join(rc.DumpDir, dump.FileName)
}

// InputPath is the snapshot of the configuration the run was started with.
func (rc *RunContext) InputPath() string {
	return filepath.Join(rc.InputDir, "config.json")
}
