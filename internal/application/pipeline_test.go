package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/davarch/apt-publisher/internal/infrastructure/repo_fs"
	"github.com/davarch/apt-publisher/internal/infrastructure/staging_fs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const asset = "solana-release-x86_64-unknown-linux-gnu.tar.bz2"

type fixture struct {
	source  *domain.MockSource
	fetcher *domain.MockFetcher
	extract *domain.MockExtractor
	stager  *domain.MockStager
	builder *domain.MockBuilder
	repo    *domain.MockRepository
	work    string
}

func newFixture(t *testing.T, tag string) *fixture {
	t.Helper()
	return &fixture{
		source: &domain.MockSource{Release: domain.Release{Tag: tag, Assets: []domain.Asset{
			{Name: asset, DownloadURL: "https://dl/" + asset},
		}}},
		fetcher: &domain.MockFetcher{Content: []byte("tarball")},
		extract: &domain.MockExtractor{},
		stager:  &domain.MockStager{},
		builder: &domain.MockBuilder{},
		repo:    &domain.MockRepository{},
		work:    t.TempDir(),
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(zap.NewNop(), Settings{
		Owner:         "solana-labs",
		Repo:          "solana",
		Asset:         asset,
		VersionPrefix: domain.DefaultVersionPrefix,
		Binaries:      []domain.Binary{{Name: "solana-validator"}},
		WorkDir:       f.work,
	}, Deps{
		Source:    f.source,
		Fetcher:   f.fetcher,
		Extractor: f.extract,
		Control:   &domain.MockControl{Control: testControl},
		Stager:    f.stager,
		Builder:   f.builder,
		Repo:      f.repo,
	})
}

var testControl = domain.Control{Fields: []domain.ControlField{
	{Key: "Package", Value: "solana-validator"},
	{Key: "Architecture", Value: "amd64"},
	{Key: "Maintainer", Value: "ops"},
}}

func TestRunOnce_PublishesNewVersion(t *testing.T) {
	f := newFixture(t, "v1.18.22")

	rep := f.pipeline().RunOnce(context.Background())

	require.Equal(t, domain.OutcomePublished, rep.Outcome, rep.Err)
	require.Equal(t, domain.Version("1.18.22"), rep.Version)
	require.Equal(t, []string{"solana-validator_1.18.22_amd64.deb"}, f.repo.Published)
	require.NotEmpty(t, rep.RunID)

	v, _ := f.stager.Controls[0].Get("Version")
	require.Equal(t, "1.18.22", v)
	require.Equal(t, filepath.Join(f.work, "1.18.22", "solana-validator_1.18.22_amd64"), f.stager.Dirs[0])
	require.Equal(t, filepath.Join(f.work, "1.18.22", "solana-validator_1.18.22_amd64.deb"), f.builder.Outputs[0])

	_, err := os.Stat(filepath.Join(f.work, "1.18.22"))
	require.True(t, os.IsNotExist(err), "work dir must be removed")
}

func TestRunOnce_SkipsExistingVersion(t *testing.T) {
	f := newFixture(t, "v1.18.22")
	f.repo.Pool = map[string]bool{"solana-validator_1.18.22_amd64.deb": true}

	rep := f.pipeline().RunOnce(context.Background())

	require.Equal(t, domain.OutcomeUpToDate, rep.Outcome)
	require.Empty(t, f.fetcher.URLs)
	require.Zero(t, f.extract.Called)
	require.Empty(t, f.builder.Outputs)
	require.Empty(t, f.repo.Published)
}

func TestRunOnce_AssetMissing(t *testing.T) {
	f := newFixture(t, "v1.18.22")
	f.source.Release.Assets = []domain.Asset{{Name: "other.tar.bz2", DownloadURL: "x"}}

	rep := f.pipeline().RunOnce(context.Background())

	require.Equal(t, domain.OutcomeAssetMissing, rep.Outcome)
	require.ErrorIs(t, rep.Err, domain.ErrAssetNotFound)
	require.Empty(t, f.fetcher.URLs)
	require.Empty(t, f.stager.Dirs)
	require.Empty(t, f.repo.Published)
}

func TestRunOnce_StageOfFailure(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name   string
		mutate func(f *fixture)
		stage  domain.Stage
	}{
		{"release api", func(f *fixture) { f.source.Err = &domain.StatusError{Op: "latest release", Code: 502, Status: "502 Bad Gateway"} }, domain.StageLocate},
		{"bad tag", func(f *fixture) { f.source.Release.Tag = "v../../etc" }, domain.StageLocate},
		{"download", func(f *fixture) { f.fetcher.Err = boom }, domain.StageFetch},
		{"extract", func(f *fixture) { f.extract.Err = boom }, domain.StageExtract},
		{"stage", func(f *fixture) { f.stager.Err = boom }, domain.StageAssemble},
		{"dpkg-deb", func(f *fixture) { f.builder.Err = boom }, domain.StageAssemble},
		{"publish", func(f *fixture) { f.repo.Err = boom }, domain.StagePublish},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "v2.0.0")
			tc.mutate(f)

			rep := f.pipeline().RunOnce(context.Background())

			require.Equal(t, domain.OutcomeFailed, rep.Outcome)
			require.Equal(t, tc.stage, rep.Stage)
			require.Error(t, rep.Err)
			require.Empty(t, f.repo.Published)

			entries, err := os.ReadDir(f.work)
			require.NoError(t, err)
			require.Empty(t, entries, "work dir must be removed after failure")
		})
	}
}

func TestRunOnce_ControlLoadFailure(t *testing.T) {
	f := newFixture(t, "v1.0.0")
	p := f.pipeline()
	p.d.Control = &domain.MockControl{Err: errors.New("open control.json: no such file")}

	rep := p.RunOnce(context.Background())

	require.Equal(t, domain.OutcomeFailed, rep.Outcome)
	require.Equal(t, domain.StageConfig, rep.Stage)
	require.Zero(t, f.source.Called)
}

func TestRunOnce_KeepWork(t *testing.T) {
	f := newFixture(t, "v1.0.0")
	p := f.pipeline()
	p.set.KeepWork = true

	rep := p.RunOnce(context.Background())
	require.Equal(t, domain.OutcomePublished, rep.Outcome)
	require.FileExists(t, filepath.Join(f.work, "1.0.0", asset))
	require.NoDirExists(t, filepath.Join(f.work, "1.0.0", "solana-validator_1.0.0_amd64"), "staging is always removed")
}

// With the real filesystem stager and repository, a failing packaging tool
// must not leave anything in the pool.
func TestRunOnce_BuildFailureLeavesPoolEmpty(t *testing.T) {
	f := newFixture(t, "v3.1.0")
	root := t.TempDir()
	repo := repo_fs.New(repo_fs.Options{Root: root}, &domain.MockIndex{})

	p := f.pipeline()
	p.d.Stager = staging_fs.New()
	p.d.Builder = &domain.MockBuilder{Err: &domain.ToolError{Tool: "dpkg-deb", Err: errors.New("exit status 2")}}
	p.d.Repo = repo

	rep := p.RunOnce(context.Background())
	require.Equal(t, domain.OutcomeFailed, rep.Outcome)

	names, err := repo.List("solana-validator")
	require.NoError(t, err)
	require.Empty(t, names)
	require.NoFileExists(t, repo.IndexPath("amd64"))

	p.d.Builder = &domain.MockBuilder{}
	rep = p.RunOnce(context.Background())
	require.Equal(t, domain.OutcomePublished, rep.Outcome, rep.Err)

	names, err = repo.List("solana-validator")
	require.NoError(t, err)
	require.Equal(t, []string{"solana-validator_3.1.0_amd64.deb"}, names)

	rep = p.RunOnce(context.Background())
	require.Equal(t, domain.OutcomeUpToDate, rep.Outcome)
}
