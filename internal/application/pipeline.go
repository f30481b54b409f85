package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Settings struct {
	Owner         string
	Repo          string
	Asset         string
	VersionPrefix string
	Binaries      []domain.Binary
	WorkDir       string
	KeepWork      bool
}

type Deps struct {
	Source    domain.ReleaseSource
	Fetcher   domain.Fetcher
	Extractor domain.Extractor
	Control   domain.ControlSource
	Stager    domain.Stager
	Builder   domain.PackageBuilder
	Repo      domain.Repository
}

// Pipeline turns the latest upstream release into a published package.
type Pipeline struct {
	log *zap.Logger
	set Settings
	d   Deps
}

func NewPipeline(l *zap.Logger, s Settings, d Deps) *Pipeline {
	return &Pipeline{log: l, set: s, d: d}
}

func (p *Pipeline) RunOnce(ctx context.Context) domain.Report {
	rep := domain.Report{RunID: uuid.NewString()}
	log := p.log.With(zap.String("run", rep.RunID))

	fail := func(stage domain.Stage, err error) domain.Report {
		rep.Outcome = domain.OutcomeFailed
		rep.Stage = stage
		rep.Err = err
		return rep
	}

	control, err := p.d.Control.Load(ctx)
	if err != nil {
		return fail(domain.StageConfig, err)
	}

	rel, err := p.d.Source.LatestRelease(ctx, p.set.Owner, p.set.Repo)
	if err != nil {
		return fail(domain.StageLocate, err)
	}
	rep.Tag = rel.Tag
	log.Info("latest release found", zap.String("tag", rel.Tag), zap.Int("assets", len(rel.Assets)))

	url, err := rel.AssetURL(p.set.Asset)
	if errors.Is(err, domain.ErrAssetNotFound) {
		rep.Outcome = domain.OutcomeAssetMissing
		rep.Stage = domain.StageLocate
		rep.Err = err
		return rep
	}
	if err != nil {
		return fail(domain.StageLocate, err)
	}

	version, err := domain.NormalizeVersion(rel.Tag, p.set.VersionPrefix)
	if err != nil {
		return fail(domain.StageLocate, err)
	}
	rep.Version = version

	control = control.WithVersion(version)
	rep.Artifact = control.ArtifactName(version)

	exists, err := p.d.Repo.Contains(control, version)
	if err != nil {
		return fail(domain.StagePublish, err)
	}
	if exists {
		rep.Outcome = domain.OutcomeUpToDate
		return rep
	}

	work := filepath.Join(p.set.WorkDir, version.String())
	if !p.set.KeepWork {
		defer func() {
			if err := os.RemoveAll(work); err != nil {
				log.Warn("work dir cleanup failed", zap.String("dir", work), zap.Error(err))
			}
		}()
	}

	log.Info("downloading", zap.String("url", url), zap.String("dir", work))
	archive, err := p.d.Fetcher.Download(ctx, url, work, p.set.Asset)
	if err != nil {
		return fail(domain.StageFetch, err)
	}

	names := make([]string, 0, len(p.set.Binaries))
	for _, b := range p.set.Binaries {
		names = append(names, b.Name)
	}

	log.Info("extracting", zap.String("archive", archive))
	paths, err := p.d.Extractor.Extract(ctx, archive, work, names)
	if err != nil {
		return fail(domain.StageExtract, err)
	}

	payload := make([]domain.Payload, 0, len(paths))
	for i, src := range paths {
		payload = append(payload, domain.Payload{Source: src, Binary: p.set.Binaries[i]})
	}

	log.Info("building package", zap.String("artifact", rep.Artifact))
	built, err := p.assemble(ctx, work, control, version, payload)
	if err != nil {
		return fail(domain.StageAssemble, err)
	}

	dest, err := p.d.Repo.Publish(ctx, control, built)
	if dest != "" {
		rep.Artifact = dest
	}
	if err != nil {
		return fail(domain.StagePublish, err)
	}

	rep.Outcome = domain.OutcomePublished
	return rep
}

// assemble stages the package tree, builds the .deb next to it and always
// removes the staging tree. A failed build leaves no output file behind.
func (p *Pipeline) assemble(ctx context.Context, work string, control domain.Control, v domain.Version, payload []domain.Payload) (string, error) {
	staging := filepath.Join(work, control.ArtifactBase(v))
	out := filepath.Join(work, control.ArtifactName(v))

	_ = os.RemoveAll(staging)
	defer func() { _ = os.RemoveAll(staging) }()

	if err := p.d.Stager.Stage(ctx, staging, control, payload); err != nil {
		return "", err
	}

	if err := p.d.Builder.Build(ctx, staging, out); err != nil {
		_ = os.Remove(out)
		return "", err
	}

	return out, nil
}
