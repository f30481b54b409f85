package application

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/apt-publisher/internal/domain"
	"go.uber.org/zap"
)

type Runner interface {
	RunOnce(ctx context.Context) domain.Report
}

type Scheduler struct {
	log       *zap.Logger
	every     time.Duration
	pauseFile string
	status    domain.StatusWriter
	note      domain.Notifier

	mu  sync.RWMutex
	run Runner
}

func NewScheduler(l *zap.Logger, r Runner, every time.Duration, pauseFile string, status domain.StatusWriter, note domain.Notifier) *Scheduler {
	return &Scheduler{
		log: l, run: r, every: every, pauseFile: pauseFile, status: status, note: note,
	}
}

func (s *Scheduler) UpdatePipeline(r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = r
	s.log.Info("config reloaded")
}

// Run executes a cycle right away and then once per interval until ctx is done.
// Cycle failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	bo := backoff.WithContext(backoff.NewConstantBackOff(s.every), ctx)

	for {
		s.tick(ctx)

		d := bo.NextBackOff()
		if d == backoff.Stop {
			return
		}

		s.log.Info("sleeping", zap.Duration("for", d))
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.isPaused() {
		s.log.Info("paused: skipping cycle", zap.String("pause_file", s.pauseFile))
		return
	}
	s.RunCycle(ctx)
}

func (s *Scheduler) isPaused() bool {
	if s.pauseFile == "" {
		return false
	}
	_, err := os.Stat(s.pauseFile)
	return err == nil
}

// RunCycle runs the pipeline once and records the outcome.
func (s *Scheduler) RunCycle(ctx context.Context) domain.Report {
	rep := s.safeRun(ctx)
	s.observe(ctx, rep)
	return rep
}

func (s *Scheduler) safeRun(ctx context.Context) (rep domain.Report) {
	s.mu.RLock()
	r := s.run
	s.mu.RUnlock()

	defer func() {
		if v := recover(); v != nil {
			rep = domain.Report{Outcome: domain.OutcomeFailed, Err: fmt.Errorf("panic: %v", v)}
		}
	}()

	return r.RunOnce(ctx)
}

func (s *Scheduler) observe(ctx context.Context, rep domain.Report) {
	fields := []zap.Field{
		zap.String("run", rep.RunID),
		zap.String("outcome", string(rep.Outcome)),
		zap.String("tag", rep.Tag),
		zap.String("version", rep.Version.String()),
	}

	switch rep.Outcome {
	case domain.OutcomePublished:
		s.log.Info("package published", append(fields, zap.String("artifact", rep.Artifact))...)
		s.notify(ctx, "📦 apt: published", rep.Artifact)
	case domain.OutcomeUpToDate:
		s.log.Info("package already exists, nothing to do", append(fields, zap.String("artifact", rep.Artifact))...)
	case domain.OutcomeAssetMissing:
		s.log.Warn("asset not found in latest release", append(fields, zap.Error(rep.Err))...)
	default:
		s.log.Error("cycle failed", append(fields, zap.String("stage", string(rep.Stage)), zap.Error(rep.Err))...)
		body := string(rep.Stage)
		if rep.Err != nil {
			body += ": " + rep.Err.Error()
		}
		s.notify(ctx, "❌ apt: cycle failed", body)
	}

	if s.status != nil {
		if err := s.status.Write(ctx, domain.Snapshot{Report: rep, Finished: time.Now().Unix()}); err != nil {
			s.log.Warn("status write failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) notify(ctx context.Context, title, body string) {
	if s.note == nil {
		return
	}
	if err := s.note.Notify(ctx, title, body, ""); err != nil {
		s.log.Debug("notify failed", zap.Error(err))
	}
}
