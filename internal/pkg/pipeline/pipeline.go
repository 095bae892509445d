// Package pipeline runs one model configuration through load, lowering,
// model construction, LP export, solve and result persistence.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/dump"
	"github.com/ohowland/cgc_planner/internal/pkg/esys"
	"github.com/ohowland/cgc_planner/internal/pkg/metrics"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"github.com/ohowland/cgc_planner/internal/pkg/optimize"
	"github.com/ohowland/cgc_planner/internal/pkg/solver"
	"github.com/sirupsen/logrus"
)

// ErrLoad is returned when the configuration cannot be read, decoded or
// validated.
var ErrLoad = errors.New("load configuration")

// Config holds the process level settings of the runner.
type Config struct {
	WorkDir string
	// SolverBinary maps a solver name to its binary. A nil func or an
	// empty result uses the driver default.
	SolverBinary func(name string) string
}

func (c Config) binary(name string) string {
	if c.SolverBinary == nil {
		return ""
	}
	return c.SolverBinary(name)
}

// Forwarder receives run events. *msg.PubSub satisfies it.
type Forwarder interface {
	Forward(msg.Msg)
}

// SolverFactory returns the driver for a solver name and binary.
type SolverFactory func(name, binary string) (solver.Solver, error)

// Option customises a Runner.
type Option func(*Runner)

// WithPublisher publishes run events to f.
func WithPublisher(f Forwarder) Option {
	return func(r *Runner) { r.pub = f }
}

// WithMetrics records run metrics in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = reg }
}

// WithSolverFactory replaces solver.New.
func WithSolverFactory(f SolverFactory) Option {
	return func(r *Runner) { r.newSolver = f }
}

// WithTechnologies synthesises technology-typed nodes from table on load.
func WithTechnologies(table esys.Lookup) Option {
	return func(r *Runner) { r.table = table }
}

// Runner executes runs. Each run is synchronous and owns its own run
// directory; a Runner may be shared by concurrent callers.
type Runner struct {
	cfg       Config
	log       *logrus.Logger
	pub       Forwarder
	metrics   *metrics.Registry
	newSolver SolverFactory
	table     esys.Lookup
}

// New returns a runner logging through log.
func New(cfg Config, log *logrus.Logger, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, log: log, newSolver: solver.New}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes a finished run. On failure the fields reached before
// the failing stage are set.
type Result struct {
	Token     uuid.UUID
	Name      string
	Dir       string
	State     State
	LPPath    string
	DumpPath  string
	Model     *esys.Model
	Network   *network.Network
	Optimizer *optimize.Model
	Solution  *solver.Solution
}

// RunFile runs the configuration file at path. The model is named after
// the file.
func (r *Runner) RunFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return r.Run(ctx, name, data)
}

// Run executes one configuration. The first failing stage aborts the run;
// the dump is written only after a successful solve.
func (r *Runner) Run(ctx context.Context, name string, config []byte) (*Result, error) {
	if name == "" {
		name = "model"
	}
	rc, err := NewRunContext(r.cfg.WorkDir, uuid.New(), r.log)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	res := &Result{Token: rc.Token, Name: name, Dir: rc.Dir, State: Running}
	x := &run{Runner: r, rc: rc, res: res}
	if err := x.execute(ctx, config); err != nil {
		res.State = Failed
		x.publishStatus(Failed, err)
		x.recordRun()
		rc.Log.WithError(err).WithField("stage", x.stage).Error("run failed")
		return res, err
	}
	res.State = Solved
	x.publishStatus(Solved, nil)
	x.recordRun()
	rc.Log.WithField("objective", res.Solution.Objective).Info("run solved")
	return res, nil
}

// run carries the state of one execution.
type run struct {
	*Runner
	rc    *RunContext
	res   *Result
	stage Stage
}

func (x *run) execute(ctx context.Context, config []byte) error {
	if err := x.snapshotInput(config); err != nil {
		return err
	}

	var m *esys.Model
	if err := x.step(StageLoad, func() (err error) {
		var opts []esys.DecodeOption
		if x.table != nil {
			opts = append(opts, esys.WithTechnologies(x.table))
		}
		m, err = esys.Decode(bytes.NewReader(config), opts...)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoad, err)
		}
		return nil
	}); err != nil {
		return err
	}
	x.res.Model = m
	es := m.EnergySystem

	var net *network.Network
	if err := x.step(StageIndex, func() (err error) {
		net, err = network.New(es.TimeIndex(), es.Step())
		return err
	}); err != nil {
		return err
	}
	x.res.Network = net

	if err := x.step(StageLower, func() error { return es.Lower(net) }); err != nil {
		return err
	}

	var model *optimize.Model
	if err := x.step(StageConstruct, func() (err error) {
		model, err = optimize.New(net, x.res.Name)
		return err
	}); err != nil {
		return err
	}
	if err := x.step(StageConstrain, func() (err error) {
		model, err = es.ApplyConstraints(model)
		return err
	}); err != nil {
		return err
	}
	x.res.Optimizer = model
	if x.metrics != nil {
		x.metrics.RecordModel(model.NumVariables(), model.NumConstraints())
	}

	lpPath := x.rc.LPPath(x.res.Name)
	if err := x.step(StageWriteLP, func() error { return model.WriteLPFile(lpPath) }); err != nil {
		return err
	}
	x.res.LPPath = lpPath

	var sol *solver.Solution
	var solverName string
	if err := x.step(StageSolve, func() error {
		s, err := x.newSolver(m.Solver, x.cfg.binary(m.Solver))
		if err != nil {
			return err
		}
		solverName = s.Name()
		sol, err = s.Solve(ctx, solver.Request{
			ModelPath:    lpPath,
			SolutionPath: x.rc.SolutionPath(x.res.Name),
			LogPath:      x.rc.SolverLogPath(),
			Verbose:      m.SolverVerbose,
			Options:      m.SolverKwargs,
			Columns:      model.ColumnNames(),
		})
		if err != nil {
			return err
		}
		x.res.Solution = sol
		return sol.Err()
	}); err != nil {
		return err
	}

	var results *network.Results
	if err := x.step(StageResults, func() (err error) {
		model.SetSolution(sol.Values, sol.Objective, sol.Status.String(), solverName, sol.Duration)
		results, err = model.Results()
		return err
	}); err != nil {
		return err
	}
	net.Results = results

	dumpPath := x.rc.DumpPath()
	if err := x.step(StageDump, func() error { return dump.Write(dumpPath, net) }); err != nil {
		return err
	}
	x.res.DumpPath = dumpPath
	x.publish(msg.Result, results)
	if x.metrics != nil {
		x.metrics.RecordObjective(sol.Objective)
	}
	return nil
}

// step runs fn as stage, logging and timing it.
func (x *run) step(stage Stage, fn func() error) error {
	x.stage = stage
	x.publishStatus(Running, nil)
	log := x.rc.Log.WithField("stage", stage)
	log.Debug("stage started")
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if x.metrics != nil {
		x.metrics.ObserveStage(string(stage), elapsed)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	log.WithField("elapsed", elapsed).Info("stage done")
	return nil
}

// snapshotInput stores the configuration as given. Valid JSON is indented
// and a JSON object is published on the config topic.
func (x *run) snapshotInput(config []byte) error {
	data := config
	var indented bytes.Buffer
	if err := json.Indent(&indented, config, "", "  "); err == nil {
		data = indented.Bytes()
		var doc map[string]interface{}
		if json.Unmarshal(config, &doc) == nil {
			x.publish(msg.Config, doc)
		}
	}
	if err := os.WriteFile(x.rc.InputPath(), data, 0644); err != nil {
		return fmt.Errorf("input snapshot: %w", err)
	}
	return nil
}

func (x *run) publish(topic msg.Topic, payload interface{}) {
	if x.pub == nil {
		return
	}
	x.pub.Forward(msg.New(x.rc.Token, topic, payload))
}

func (x *run) publishStatus(state State, err error) {
	ev := Event{
		Token: x.rc.Token.String(),
		Name:  x.res.Name,
		State: state,
		Stage: x.stage,
		Time:  time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if state == Solved && x.res.Solution != nil {
		obj := x.res.Solution.Objective
		ev.Objective = &obj
	}
	x.publish(msg.Status, ev)
}

func (x *run) recordRun() {
	if x.metrics == nil {
		return
	}
	name := "unknown"
	if x.res.Model != nil {
		name = x.res.Model.Solver
	}
	x.metrics.RecordRun(name, string(x.res.State))
}
