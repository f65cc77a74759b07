// Copyright 2016 Aleksandr Demakin. All rights reserved.

// shmbench runs shared-region workers and prints the run report.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nxgtw/shmsync/coordinator"
	"github.com/nxgtw/shmsync/region"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

// errFailed is returned, when a run did not pass. The report has already been printed.
var errFailed = errors.New("run failed")

type runFlags struct {
	config         string
	workers        int
	readers        int
	writers        int
	incrementers   int
	ops            int
	lock           string
	timeout        time.Duration
	acquireTimeout time.Duration
	holdMin        time.Duration
	holdMax        time.Duration
	delay          time.Duration
	seed           uint64
	verbose        bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "yaml config file")
	fs.IntVarP(&f.workers, "workers", "w", 0, "number of workers")
	fs.IntVar(&f.readers, "readers", 0, "number of readers")
	fs.IntVar(&f.writers, "writers", 0, "number of writers")
	fs.IntVar(&f.incrementers, "incrementers", 0, "number of incrementers")
	fs.IntVarP(&f.ops, "ops", "n", 0, "operations per worker")
	fs.StringVarP(&f.lock, "lock", "l", "", "lock kind: none, atomic, mutex or rwlock")
	fs.DurationVar(&f.timeout, "timeout", 0, "run timeout")
	fs.DurationVar(&f.acquireTimeout, "acquire-timeout", 0, "lock acquisition timeout, 0 means 'no timeout'")
	fs.DurationVar(&f.holdMin, "hold-min", 0, "minimal lock hold time")
	fs.DurationVar(&f.holdMax, "hold-max", 0, "maximal lock hold time")
	fs.DurationVar(&f.delay, "delay", 0, "delay before workers start")
	fs.Uint64Var(&f.seed, "seed", 0, "seed for hold times")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log to stderr")
}

// configFor builds a config from the config file and explicitly set flags.
func (f *runFlags) configFor(fs *pflag.FlagSet) (coordinator.Config, error) {
	cfg := coordinator.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = coordinator.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	if fs.Changed("workers") {
		cfg.WorkerCount = f.workers
	}
	if fs.Changed("readers") {
		cfg.Roles.Readers = f.readers
	}
	if fs.Changed("writers") {
		cfg.Roles.Writers = f.writers
	}
	if fs.Changed("incrementers") {
		cfg.Roles.Incrementers = f.incrementers
	}
	if fs.Changed("ops") {
		cfg.OpsPerWorker = f.ops
	}
	if fs.Changed("lock") {
		cfg.LockKind = coordinator.LockKind(strings.ToLower(f.lock))
	}
	durations := []struct {
		name  string
		value time.Duration
		ms    *int
	}{
		{"timeout", f.timeout, &cfg.TimeoutMs},
		{"acquire-timeout", f.acquireTimeout, &cfg.AcquireTimeoutMs},
		{"hold-min", f.holdMin, &cfg.HoldMinMs},
		{"hold-max", f.holdMax, &cfg.HoldMaxMs},
		{"delay", f.delay, &cfg.DelayMs},
	}
	for _, d := range durations {
		if !fs.Changed(d.name) {
			continue
		}
		ms, err := durationToMs(d.value)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid --%s", d.name)
		}
		*d.ms = ms
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	return cfg, cfg.Validate()
}

// durationToMs converts a duration flag to whole milliseconds.
// Non-zero values are rounded up, so that they never turn into 0.
func durationToMs(d time.Duration) (int, error) {
	if d < 0 {
		return 0, errors.Errorf("negative duration %v", d)
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return 0, errors.Errorf("duration %v is too long", d)
	}
	return int(ms), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newRunCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run workers and check the final state of the shared region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.configFor(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(flags.verbose)
			if err != nil {
				return errors.Wrap(err, "failed to create logger")
			}
			defer logger.Sync()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			report, err := coordinator.Run(ctx, cfg, coordinator.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := printYAML(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Passed() {
				return errFailed
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout [name]",
		Short: "Print predefined region layouts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printYAML(cmd.OutOrStdout(), region.Layouts())
			}
			l, found := region.LayoutByName(args[0])
			if !found {
				return errors.Errorf("unknown layout %q", args[0])
			}
			return printYAML(cmd.OutOrStdout(), l)
		},
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "shmbench",
		Short:         "Shared region synchronization bench",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newLayoutCommand())
	return root
}

func printYAML(w io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal")
	}
	_, err = w.Write(data)
	return err
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		if err != errFailed {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}
