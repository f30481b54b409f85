package cli

import (
	"github.com/davarch/apt-publisher/internal/application"
	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/davarch/apt-publisher/internal/infrastructure/archive_tar"
	"github.com/davarch/apt-publisher/internal/infrastructure/config"
	"github.com/davarch/apt-publisher/internal/infrastructure/control_json"
	"github.com/davarch/apt-publisher/internal/infrastructure/dpkg_exec"
	"github.com/davarch/apt-publisher/internal/infrastructure/github_http"
	"github.com/davarch/apt-publisher/internal/infrastructure/lock_flock"
	"github.com/davarch/apt-publisher/internal/infrastructure/logging"
	"github.com/davarch/apt-publisher/internal/infrastructure/notify_libnotify"
	"github.com/davarch/apt-publisher/internal/infrastructure/repo_fs"
	"github.com/davarch/apt-publisher/internal/infrastructure/staging_fs"
	"github.com/davarch/apt-publisher/internal/infrastructure/status_fs"
	"go.uber.org/zap"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
}

func repoLock(cfg config.Config) *lock_flock.Lock {
	return lock_flock.ForRepo(cfg.Work.Dir, cfg.Repo.Root)
}

func newRepository(cfg config.Config) *repo_fs.Repository {
	return repo_fs.New(repo_fs.Options{
		Root:      cfg.Repo.Root,
		Suite:     cfg.Repo.Suite,
		Component: cfg.Repo.Component,
		XZ:        cfg.Repo.XZ,
	}, dpkg_exec.NewScanner(cfg.Tools.ScanPackages))
}

func newPipeline(cfg config.Config, log *zap.Logger) *application.Pipeline {
	gh := github_http.New(cfg.Source.APIURL, cfg.Source.Timeout, "apt-publisher/"+version)

	bins := make([]domain.Binary, 0, len(cfg.Package.Binaries))
	for _, b := range cfg.Package.Binaries {
		bins = append(bins, domain.Binary{Name: b.Name, InstallDir: b.InstallDir})
	}

	return application.NewPipeline(log, application.Settings{
		Owner:         cfg.Source.Owner,
		Repo:          cfg.Source.Repo,
		Asset:         cfg.Source.Asset,
		VersionPrefix: cfg.Package.VersionPrefix,
		Binaries:      bins,
		WorkDir:       cfg.Work.Dir,
		KeepWork:      cfg.Work.Keep,
	}, application.Deps{
		Source:    gh,
		Fetcher:   gh,
		Extractor: archive_tar.New(),
		Control:   control_json.New(cfg.Package.ControlFile),
		Stager:    staging_fs.New(),
		Builder:   dpkg_exec.NewBuilder(cfg.Tools.DpkgDeb, cfg.Tools.RootOwnerGroup),
		Repo:      newRepository(cfg),
	})
}

func newScheduler(cfg config.Config, log *zap.Logger) *application.Scheduler {
	var note domain.Notifier = notify_libnotify.Nop{}
	if cfg.Notify.Enabled {
		note = notify_libnotify.NewSoft(notify_libnotify.Options{Urgency: cfg.Notify.Urgency})
	}

	return application.NewScheduler(log, newPipeline(cfg, log), cfg.Poll.Interval, cfg.Poll.PauseFile,
		status_fs.New(cfg.Status.Path), note)
}
