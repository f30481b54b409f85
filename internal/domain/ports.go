package domain

import "context"

type ReleaseSource interface {
	LatestRelease(ctx context.Context, owner, repo string) (Release, error)
}

type Fetcher interface {
	Download(ctx context.Context, url, dir, name string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, archive, dest string, names []string) ([]string, error)
}

type ControlSource interface {
	Load(ctx context.Context) (Control, error)
}

type Stager interface {
	Stage(ctx context.Context, dir string, control Control, payload []Payload) error
}

type PackageBuilder interface {
	Build(ctx context.Context, stagingDir, outPath string) error
}

type IndexGenerator interface {
	Generate(ctx context.Context, root, poolRel string) ([]byte, error)
}

type Repository interface {
	Contains(control Control, v Version) (bool, error)
	Publish(ctx context.Context, control Control, builtPath string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}

type StatusWriter interface {
	Write(ctx context.Context, s Snapshot) error
}
