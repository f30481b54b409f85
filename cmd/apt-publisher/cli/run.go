package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davarch/apt-publisher/internal/application"
	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reloadDebounce = 300 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll for new releases and publish them, forever",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		lock := repoLock(cfg)
		if err := lock.Acquire(); err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()

		sched := newScheduler(cfg, log)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		watchAndReload(ctx, cfgPath, cfg.Repo.Root, log, sched)

		log.Info("start",
			zap.String("version", version),
			zap.String("release", cfg.Source.Owner+"/"+cfg.Source.Repo),
			zap.String("asset", cfg.Source.Asset),
			zap.Duration("every", cfg.Poll.Interval),
			zap.String("repo", cfg.Repo.Root),
			zap.String("work", cfg.Work.Dir),
			zap.String("pause_file", cfg.Poll.PauseFile),
		)
		sched.Run(ctx)
		log.Info("stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// watchAndReload rebuilds the pipeline whenever the config file changes.
// Poll interval and pause file changes need a restart. The repository root
// stays pinned to root because the process lock guards that tree only.
func watchAndReload(ctx context.Context, cfgPath, root string, log *zap.Logger, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	if err := w.Add(dir); err != nil {
		log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
		_ = w.Close()
		return
	}

	fire := func() {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		if cfg.Repo.Root != root {
			log.Warn("repo.root change ignored until restart", zap.String("current", root), zap.String("requested", cfg.Repo.Root))
			cfg.Repo.Root = root
		}
		sched.UpdatePipeline(newPipeline(cfg, log))
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if filepath.Base(ev.Name) != base {
					continue
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if timer == nil {
						timer = time.AfterFunc(reloadDebounce, fire)
					} else {
						timer.Reset(reloadDebounce)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
