// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nxgtw/shmsync/coordinator"
	"github.com/nxgtw/shmsync/region"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	a := assert.New(t)
	out, err := execute("run", "--lock", "rwlock", "--workers", "3", "--readers", "2", "--writers", "1", "--ops", "20", "--hold-max", "1ms")
	require.NoError(t, err)
	var report coordinator.RunReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	a.Equal(coordinator.PhaseAllDone, report.Phase)
	a.True(report.Verdict.Passed)
	a.Equal(int64(20), report.Observed)
	a.Len(report.Workers, 3)
}

func TestRunCommandConfigFile(t *testing.T) {
	a := assert.New(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workerCount: 2\nopsPerWorker: 10\nlockKind: mutex\n"), 0600))
	out, err := execute("run", "--config", path, "--ops", "15")
	require.NoError(t, err)
	var report coordinator.RunReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	a.Equal(coordinator.LockMutex, report.LockKind)
	a.Equal(int64(30), report.Observed)
}

func TestRunCommandInvalid(t *testing.T) {
	_, err := execute("run", "--lock", "spin")
	assert.Error(t, err)
	_, err = execute("run", "--readers", "1")
	assert.Error(t, err)
}

func TestLayoutCommand(t *testing.T) {
	a := assert.New(t)
	out, err := execute("layout", "rwlock")
	require.NoError(t, err)
	l, err := region.UnmarshalLayout([]byte(out))
	a.NoError(err)
	a.Equal(region.RWLockLayout, l)

	out, err = execute("layout")
	require.NoError(t, err)
	var layouts []region.Layout
	a.NoError(yaml.Unmarshal([]byte(out), &layouts))
	a.Equal(region.Layouts(), layouts)

	_, err = execute("layout", "unknown")
	a.Error(err)
}

func TestDurationToMs(t *testing.T) {
	a := assert.New(t)
	for d, expected := range map[time.Duration]int{
		0:                       0,
		500 * time.Microsecond:  1,
		time.Millisecond:        1,
		1500 * time.Microsecond: 2,
		2 * time.Second:         2000,
	} {
		ms, err := durationToMs(d)
		a.NoError(err)
		a.Equal(expected, ms, d.String())
	}
	_, err := durationToMs(-time.Millisecond)
	a.Error(err)
}

func TestRunCommandSubMillisecondAcquireTimeout(t *testing.T) {
	a := assert.New(t)
	var flags runFlags
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.register(fs)
	require.NoError(t, fs.Parse([]string{"--lock", "mutex", "--acquire-timeout", "500us"}))
	cfg, err := flags.configFor(fs)
	require.NoError(t, err)
	a.Equal(1, cfg.AcquireTimeoutMs)
	a.Equal(coordinator.LockMutex, cfg.LockKind)

	_, err = execute("run", "--hold-max=-1ms")
	a.Error(err)
}
