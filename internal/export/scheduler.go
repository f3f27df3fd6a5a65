package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/pkg/sink"
	"github.com/user/expdata/pkg/state"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs configured exports on cron schedules. Runs of the same
// schedule never overlap.
type Scheduler struct {
	svc   *Service
	cron  *cron.Cron
	store state.Store

	mu      sync.Mutex
	running map[string]bool
	last    map[string][]*Artifact
}

func NewScheduler(svc *Service) *Scheduler {
	return &Scheduler{
		svc:     svc,
		cron:    cron.New(cron.WithParser(cronParser)),
		running: make(map[string]bool),
		last:    make(map[string][]*Artifact),
	}
}

// SetStore persists the artifacts of every successful run in st so they
// outlive the process.
func (s *Scheduler) SetStore(st state.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
}

func runKey(name string) string {
	return "schedule/" + name
}

// Add registers a schedule.
func (s *Scheduler) Add(sc config.ScheduleConfig) error {
	name := sc.Name
	if name == "" {
		name = sc.Cron
	}
	kind, err := ParseKind(sc.Kind)
	if err != nil {
		return err
	}
	format, err := sink.ParseFormat(sc.Format)
	if err != nil {
		return err
	}
	for _, a := range sc.Apps {
		if _, err := s.svc.App(a); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	req := Request{Apps: sc.Apps, Kind: kind, Format: format}

	if _, err := s.cron.AddFunc(sc.Cron, func() { s.Run(context.Background(), name, req) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.svc.log("INFO", "Export scheduled", "schedule", name, "cron", sc.Cron, "apps", sc.Apps, "format", format)
	return nil
}

// Run executes one scheduled export unless the previous run of the same
// schedule is still active.
func (s *Scheduler) Run(ctx context.Context, name string, req Request) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		ScheduledRunsTotal.WithLabelValues(name, "skipped").Inc()
		s.svc.log("WARN", "Previous export still running, skipping", "schedule", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	arts, err := s.svc.Export(ctx, req)
	if err != nil {
		ScheduledRunsTotal.WithLabelValues(name, "error").Inc()
		s.svc.log("ERROR", "Scheduled export failed", "schedule", name, "error", err)
		return
	}
	ScheduledRunsTotal.WithLabelValues(name, "ok").Inc()

	s.mu.Lock()
	s.last[name] = arts
	store := s.store
	s.mu.Unlock()

	if store == nil {
		return
	}
	data, err := json.Marshal(arts)
	if err == nil {
		err = store.Set(ctx, runKey(name), data)
	}
	if err != nil {
		s.svc.log("WARN", "Failed to persist scheduled run", "schedule", name, "error", err)
	}
}

// Last returns the artifacts of the latest successful run of a schedule,
// falling back to the state store for runs of earlier processes.
func (s *Scheduler) Last(ctx context.Context, name string) []*Artifact {
	s.mu.Lock()
	arts, store := s.last[name], s.store
	s.mu.Unlock()
	if arts != nil || store == nil {
		return arts
	}

	data, err := store.Get(ctx, runKey(name))
	if err != nil {
		s.svc.log("WARN", "Failed to read scheduled run", "schedule", name, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, &arts); err != nil {
		s.svc.log("WARN", "Corrupt scheduled run record", "schedule", name, "error", err)
		return nil
	}
	return arts
}

// Entries returns the next activation time per schedule entry.
func (s *Scheduler) Entries() []time.Time {
	var out []time.Time
	for _, e := range s.cron.Entries() {
		out = append(out, e.Next)
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running exports.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
