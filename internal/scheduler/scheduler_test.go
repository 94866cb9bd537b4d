package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/onboarding"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDaily struct {
	runs []bool
	err  error
}

func (f *fakeDaily) RunDaily(_ context.Context, dryRun bool) (*onboarding.DailyReport, error) {
	f.runs = append(f.runs, dryRun)
	if f.err != nil {
		return nil, f.err
	}
	return &onboarding.DailyReport{DryRun: dryRun}, nil
}

type fakeAlerts struct {
	calls int
}

func (f *fakeAlerts) ProcessHighPriorityAlerts(context.Context) (*workflow.AlertRun, error) {
	f.calls++
	return &workflow.AlertRun{}, nil
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(config.Default().Scheduler, &fakeDaily{}, &fakeAlerts{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	cfg := config.Default().Scheduler
	cfg.DailySpec = "every day"
	_, err := New(cfg, &fakeDaily{}, &fakeAlerts{}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `invalid daily spec "every day"`)

	cfg = config.Default().Scheduler
	cfg.AlertSpec = "* *"
	_, err = New(cfg, &fakeDaily{}, &fakeAlerts{}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "invalid alert spec")
}

func TestJobsHonourDryRun(t *testing.T) {
	daily, alerts := &fakeDaily{}, &fakeAlerts{}
	cfg := config.Default().Scheduler
	cfg.DryRun = true
	s, err := New(cfg, daily, alerts, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.RunDaily()
	s.SetDryRun(false)
	s.RunDaily()
	s.ProcessAlerts()

	assert.Equal(t, []bool{true, false}, daily.runs)
	assert.Equal(t, 1, alerts.calls)
}

func TestFailedRunIsLogged(t *testing.T) {
	daily := &fakeDaily{err: errors.New("database down")}
	s, err := New(config.Default().Scheduler, daily, &fakeAlerts{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotPanics(t, s.RunDaily)
	assert.Len(t, daily.runs, 1)
}
