package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type funcRunner struct {
	mu    sync.Mutex
	calls int
	fn    func(n int) domain.Report
}

func (r *funcRunner) RunOnce(context.Context) domain.Report {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()
	return r.fn(n)
}

func (r *funcRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestScheduler_KeepsRunningAfterFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &funcRunner{fn: func(n int) domain.Report {
		if n == 2 {
			panic("unexpected")
		}
		return domain.Report{Outcome: domain.OutcomeFailed, Stage: domain.StageAssemble, Err: errors.New("dpkg-deb: exit status 2")}
	}}

	s := NewScheduler(zap.New(core), r, 5*time.Millisecond, "", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Calls() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done

	require.GreaterOrEqual(t, logs.FilterMessage("cycle failed").Len(), 3)
	require.GreaterOrEqual(t, logs.FilterMessage("sleeping").Len(), 2)
}

func TestScheduler_FixedInterval(t *testing.T) {
	var stamps []time.Time
	var mu sync.Mutex
	r := &funcRunner{fn: func(int) domain.Report {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return domain.Report{Outcome: domain.OutcomeUpToDate}
	}}

	s := NewScheduler(zap.NewNop(), r, 20*time.Millisecond, "", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return r.Calls() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(stamps); i++ {
		require.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 20*time.Millisecond)
	}
}

func TestScheduler_PauseFileSkipsCycle(t *testing.T) {
	pause := filepath.Join(t.TempDir(), "paused")
	require.NoError(t, os.WriteFile(pause, nil, 0o644))

	r := &funcRunner{fn: func(int) domain.Report { return domain.Report{Outcome: domain.OutcomeUpToDate} }}
	s := NewScheduler(zap.NewNop(), r, time.Hour, pause, nil, nil)

	s.tick(context.Background())
	require.Zero(t, r.Calls())

	require.NoError(t, os.Remove(pause))
	s.tick(context.Background())
	require.Equal(t, 1, r.Calls())
}

func TestScheduler_RecordsStatusAndNotifies(t *testing.T) {
	status := &domain.MockStatus{}
	note := &domain.MockNotifier{}

	r := &funcRunner{fn: func(n int) domain.Report {
		switch n {
		case 1:
			return domain.Report{Outcome: domain.OutcomePublished, Version: "1.0.0", Artifact: "/pool/app_1.0.0_amd64.deb"}
		case 2:
			return domain.Report{Outcome: domain.OutcomeUpToDate, Version: "1.0.0"}
		case 3:
			return domain.Report{Outcome: domain.OutcomeAssetMissing, Err: domain.ErrAssetNotFound}
		default:
			return domain.Report{Outcome: domain.OutcomeFailed, Stage: domain.StageFetch, Err: errors.New("404")}
		}
	}}
	s := NewScheduler(zap.NewNop(), r, time.Hour, "", status, note)

	for i := 0; i < 4; i++ {
		s.RunCycle(context.Background())
	}

	require.Len(t, status.Snapshots, 4)
	require.Equal(t, domain.OutcomeFailed, status.Snapshots[3].Report.Outcome)
	require.Len(t, note.Messages, 2, "only publish and failure notify")
}

func TestScheduler_UpdatePipeline(t *testing.T) {
	a := &funcRunner{fn: func(int) domain.Report { return domain.Report{Outcome: domain.OutcomeUpToDate} }}
	b := &funcRunner{fn: func(int) domain.Report { return domain.Report{Outcome: domain.OutcomeUpToDate} }}

	s := NewScheduler(zap.NewNop(), a, time.Hour, "", nil, nil)
	s.RunCycle(context.Background())
	s.UpdatePipeline(b)
	s.RunCycle(context.Background())

	require.Equal(t, 1, a.Calls())
	require.Equal(t, 1, b.Calls())
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	r := &funcRunner{fn: func(int) domain.Report { return domain.Report{Outcome: domain.OutcomeUpToDate} }}
	s := NewScheduler(zap.NewNop(), r, time.Hour, "", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
