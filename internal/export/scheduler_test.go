package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/pkg/state"
)

func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler(newService(t))
	require.NoError(t, s.Add(config.ScheduleConfig{Name: "nightly", Cron: "0 3 * * *", Apps: []string{"trust"}, Format: "xlsx"}))
	require.NoError(t, s.Add(config.ScheduleConfig{Cron: "@hourly", Apps: []string{"survey"}}))
	assert.Len(t, s.cron.Entries(), 2)

	assert.Error(t, s.Add(config.ScheduleConfig{Cron: "not a cron", Apps: []string{"trust"}}))
	assert.ErrorIs(t, s.Add(config.ScheduleConfig{Cron: "@daily", Apps: []string{"market"}}), ErrUnknownApp)
	assert.Error(t, s.Add(config.ScheduleConfig{Cron: "@daily", Apps: []string{"trust"}, Format: "ods"}))
}

func TestSchedulerRun(t *testing.T) {
	s := NewScheduler(newService(t))
	s.Run(context.Background(), "nightly", Request{Apps: []string{"trust"}, Kind: KindCustom, Format: expdata.FormatXLSX})
	arts := s.Last(context.Background(), "nightly")
	require.Len(t, arts, 1)
	assert.Equal(t, "trust_2024-03-01.xlsx", arts[0].Name)

	s.running["busy"] = true
	s.Run(context.Background(), "busy", Request{Apps: []string{"trust"}})
	assert.Nil(t, s.Last(context.Background(), "busy"))
}

func TestSchedulerPersistsRuns(t *testing.T) {
	store := state.NewMemoryStore()
	svc := newService(t)

	first := NewScheduler(svc)
	first.SetStore(store)
	first.Run(context.Background(), "nightly", Request{Apps: []string{"survey"}})
	want := first.Last(context.Background(), "nightly")
	require.Len(t, want, 1)

	restarted := NewScheduler(svc)
	restarted.SetStore(store)
	got := restarted.Last(context.Background(), "nightly")
	require.Len(t, got, 1)
	assert.Equal(t, want[0].RunID, got[0].RunID)
	assert.Equal(t, "survey_2024-03-01.csv", got[0].Name)
	assert.Nil(t, restarted.Last(context.Background(), "weekly"))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newService(t))
	require.NoError(t, s.Add(config.ScheduleConfig{Cron: "@every 1h", Apps: []string{"trust"}}))
	s.Start()
	assert.Len(t, s.Entries(), 1)
	require.NoError(t, s.Stop(context.Background()))
}
