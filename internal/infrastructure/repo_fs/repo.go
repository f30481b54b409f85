package repo_fs

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/ulikunitz/xz"
)

type Options struct {
	Root      string
	Suite     string
	Component string
	XZ        bool
}

// Repository is an APT tree: pool/<component>/<prefix>/<package>/ plus
// dists/<suite>/<component>/binary-<arch>/Packages{,.gz,.xz}.
type Repository struct {
	opt Options
	gen domain.IndexGenerator
}

func New(opt Options, gen domain.IndexGenerator) *Repository {
	if opt.Suite == "" {
		opt.Suite = "stable"
	}
	if opt.Component == "" {
		opt.Component = "main"
	}
	return &Repository{opt: opt, gen: gen}
}

func (r *Repository) Root() string { return r.opt.Root }

// PoolPrefix follows the Debian archive convention: "libfoo" lives under "libf".
func PoolPrefix(pkg string) string {
	if strings.HasPrefix(pkg, "lib") && len(pkg) > 3 {
		return pkg[:4]
	}
	if pkg == "" {
		return "_"
	}
	return pkg[:1]
}

// PoolRel is the pool directory of pkg relative to the repository root.
func (r *Repository) PoolRel(pkg string) string {
	return filepath.Join("pool", r.opt.Component, PoolPrefix(pkg), pkg)
}

func (r *Repository) PoolDir(pkg string) string {
	return filepath.Join(r.opt.Root, r.PoolRel(pkg))
}

func (r *Repository) IndexPath(arch string) string {
	return filepath.Join(r.opt.Root, "dists", r.opt.Suite, r.opt.Component, "binary-"+arch, "Packages")
}

func (r *Repository) Contains(control domain.Control, v domain.Version) (bool, error) {
	if err := control.Validate(); err != nil {
		return false, err
	}

	fi, err := os.Stat(filepath.Join(r.PoolDir(control.Package()), control.ArtifactName(v)))
	if err == nil {
		return fi.Mode().IsRegular(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Publish moves builtPath into the pool and regenerates the index.
// An artifact that already exists in the pool is never replaced.
func (r *Repository) Publish(ctx context.Context, control domain.Control, builtPath string) (string, error) {
	if err := control.Validate(); err != nil {
		return "", err
	}

	pool := r.PoolDir(control.Package())
	if err := os.MkdirAll(pool, 0o755); err != nil {
		return "", err
	}

	dest := filepath.Join(pool, filepath.Base(builtPath))
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrArtifactExists, filepath.Base(dest))
	}

	if err := moveFile(builtPath, dest); err != nil {
		return "", fmt.Errorf("move to pool: %w", err)
	}

	if err := r.Reindex(ctx, control.Package(), control.Architecture()); err != nil {
		return dest, err
	}
	return dest, nil
}

// Reindex rebuilds Packages for pkg from the pool's current contents.
func (r *Repository) Reindex(ctx context.Context, pkg, arch string) error {
	named := domain.Control{Fields: []domain.ControlField{{Key: "Package", Value: pkg}, {Key: "Architecture", Value: arch}}}
	if err := named.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(r.PoolDir(pkg), 0o755); err != nil {
		return err
	}

	data, err := r.gen.Generate(ctx, r.opt.Root, filepath.ToSlash(r.PoolRel(pkg)))
	if err != nil {
		return fmt.Errorf("generate index: %w", err)
	}

	return r.writeIndex(r.IndexPath(arch), data)
}

func (r *Repository) writeIndex(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if err := writeAtomic(path, data); err != nil {
		return err
	}

	gz, err := compressGzip(data)
	if err != nil {
		return err
	}
	if err := writeAtomic(path+".gz", gz); err != nil {
		return err
	}

	if !r.opt.XZ {
		return nil
	}
	xzb, err := compressXZ(data)
	if err != nil {
		return err
	}
	return writeAtomic(path+".xz", xzb)
}

// List returns the .deb files currently in the pool of pkg, sorted by name.
func (r *Repository) List(pkg string) ([]string, error) {
	entries, err := os.ReadDir(r.PoolDir(pkg))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".deb") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressXZ(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var le *os.LinkError
	if !errors.As(err, &le) || !errors.Is(le.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
