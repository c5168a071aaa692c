package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Run() { j.runs.Add(1) }

func TestManager_RunsAndStops(t *testing.T) {
	m := NewCronManager(time.UTC)
	job := &countingJob{}
	m.Add("tick", "@every 1s", job)
	m.Add("disabled", "", cron.FuncJob(func() { t.Error("disabled job must not run") }))
	require.NoError(t, m.Init())

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
}

func TestManager_InvalidSpec(t *testing.T) {
	m := NewCronManager(time.UTC)
	m.Add("broken", "every now and then", &countingJob{})
	assert.Error(t, m.RegisterJobs())
}
