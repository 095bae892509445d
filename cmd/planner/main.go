package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/mongodb"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/metrics"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/pipeline"
	"github.com/ohowland/cgc_planner/internal/pkg/settings"
	"github.com/ohowland/cgc_planner/internal/pkg/techdata"
)

func main() {
	os.Exit(run())
}

func run() int {
	settingsPath := flag.String("settings", "", "settings file (.json or .yaml)")
	envFile := flag.String("env", ".env", "dotenv file")
	workDir := flag.String("work", "", "run directory root, overrides settings")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] config.json...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	s, err := settings.Load(*settingsPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *workDir != "" {
		s.WorkDir = *workDir
	}

	logger := logging.New(s.Log)
	log := logging.Component(logger, "Main")
	log.Info("starting cgc_planner")

	pub := msg.NewPublisher(uuid.New())
	pub.SetLogger(logging.Component(logger, "PubSub"))
	// sinks stop after the publisher closes so their drain sees every event
	var sinks []func()
	defer func() {
		pub.Close()
		for _, stop := range sinks {
			stop()
		}
	}()

	if s.MongoDB != nil {
		log.Info("connecting MongoDB service")
		h, err := mongodb.New(*s.MongoDB, pub, logger)
		if err != nil {
			log.WithError(err).Error("mongodb sink")
			return 1
		}
		go h.Process()
		sinks = append(sinks, h.Stop)
	}
	if s.NATS != nil {
		log.Info("connecting NATS client")
		h, err := natshandler.New(*s.NATS, pub, logger)
		if err != nil {
			log.WithError(err).Error("nats sink")
			return 1
		}
		go h.Process()
		sinks = append(sinks, h.Stop)
	}

	reg := metrics.NewRegistry()
	opts := []pipeline.Option{pipeline.WithPublisher(pub), pipeline.WithMetrics(reg)}
	if info, err := os.Stat(s.TechDir); err == nil && info.IsDir() {
		opts = append(opts, pipeline.WithTechnologies(techdata.New(s.TechDir)))
	}
	runner := pipeline.New(pipeline.Config{WorkDir: s.WorkDir, SolverBinary: s.SolverBinary}, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range flag.Args() {
		res, err := runner.RunFile(ctx, path)
		if err != nil {
			failed++
			entry := log.WithError(err).WithField("config", path)
			if res != nil {
				entry = entry.WithField("dir", res.Dir)
			}
			entry.Error("run failed")
			continue
		}
		log.WithField("config", path).WithField("dump", res.DumpPath).Info("run solved")
	}

	if s.MetricsFile != "" {
		if err := reg.WriteTextfile(s.MetricsFile); err != nil {
			log.WithError(err).Warn("unable to write metrics")
		}
	}
	log.Info("stopping")
	if failed > 0 {
		return 1
	}
	return 0
}
