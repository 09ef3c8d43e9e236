// Package scheduler runs the daily new-paper check with robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the daily check entry.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entryID cron.EntryID
	spec    string
	logger  *zap.Logger
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// New creates a Scheduler. Jobs never overlap: a run still in progress when the
// next one is due causes that run to be skipped.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{sugar: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, logger: logger}
}

// Schedule runs task every day at the given time (HH:MM) in timezone (IANA name;
// empty means local time). A previous schedule is replaced.
func (s *Scheduler) Schedule(at, timezone string, task func()) error {
	hour, minute, err := parseTime(at)
	if err != nil {
		return err
	}
	loc := time.Local
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("loading timezone %q: %w", timezone, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), minute, hour)
	if s.entryID != 0 && spec == s.spec {
		return nil
	}
	entryID, err := s.cron.AddFunc(spec, task)
	if err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = entryID
	s.spec = spec
	s.logger.Info("daily check scheduled", zap.String("time", at), zap.String("timezone", loc.String()))
	return nil
}

// Unschedule removes the daily entry, if any.
func (s *Scheduler) Unschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
		s.spec = ""
		s.logger.Info("daily check unscheduled")
	}
}

// Next returns the next run time, or the zero time when nothing is scheduled
// or the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start begins the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("stopped before the running check finished")
	}
}

// parseTime extracts hour and minute from HH:MM format.
func parseTime(t string) (int, int, error) {
	if len(t) != 5 || t[2] != ':' || !isDigit(t[0]) || !isDigit(t[1]) || !isDigit(t[3]) || !isDigit(t[4]) {
		return 0, 0, fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: hour 0-23, minute 0-59", t)
	}
	return hour, minute, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
