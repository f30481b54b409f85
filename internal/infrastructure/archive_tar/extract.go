package archive_tar

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/ulikunitz/xz"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract unpacks archive into dest and returns <dest>/<top>/bin/<name> for every name.
// The top-level directory is taken from the first entry of the container.
func (e *Extractor) Extract(ctx context.Context, archive, dest string, names []string) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := decompressor(archive, f)
	if err != nil {
		return nil, err
	}

	top, err := untar(ctx, tar.NewReader(r), dest)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(archive), err)
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(dest, top, "bin", n))
	}
	return out, nil
}

func decompressor(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"), strings.HasSuffix(name, ".tbz"):
		return bzip2.NewReader(r), nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return xz.NewReader(r)
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(name))
	}
}

func untar(ctx context.Context, tr *tar.Reader, dest string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	top := ""
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		target, err := within(root, hdr.Name)
		if err != nil {
			return "", err
		}

		if top == "" {
			top = topLevel(hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := mkdirInside(root, target); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := prepare(root, target); err != nil {
				return "", err
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if err := symlink(root, target, hdr.Name, hdr.Linkname); err != nil {
				return "", err
			}
		case tar.TypeLink:
			src, err := within(root, hdr.Linkname)
			if err != nil {
				return "", err
			}
			if _, err := resolveInside(root, src); err != nil {
				return "", err
			}
			if err := prepare(root, target); err != nil {
				return "", err
			}
			if err := os.Link(src, target); err != nil {
				return "", err
			}
		}
	}

	if top == "" {
		return "", errors.New("empty archive")
	}
	return top, nil
}

// symlink creates target -> link. The link is checked lexically from the
// resolved parent and, when it points at something that exists, again after
// following it.
func symlink(root, target, name, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrUnsafePath, name, link)
	}
	if err := prepare(root, target); err != nil {
		return err
	}

	parent, err := resolveInside(root, filepath.Dir(target))
	if err != nil {
		return err
	}
	if _, err := within(root, mustRel(root, filepath.Join(parent, link))); err != nil {
		return fmt.Errorf("%w: %s -> %s", domain.ErrUnsafePath, name, link)
	}

	if err := os.Symlink(link, target); err != nil {
		return err
	}

	if _, err := resolveInside(root, target); err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("%w: %s -> %s", domain.ErrUnsafePath, name, link)
	}
	return nil
}

// prepare creates the parent of target inside root and clears whatever
// currently sits at target, so writes never follow an extracted link.
func prepare(root, target string) error {
	if err := mkdirInside(root, filepath.Dir(target)); err != nil {
		return err
	}
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		return os.Remove(target)
	}
	return nil
}

func mkdirInside(root, dir string) error {
	if _, err := resolveInside(root, dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// resolveInside follows symlinks along the existing part of p and fails
// when the result leaves root. Missing trailing components are appended
// unresolved: they will be created as plain directories.
func resolveInside(root, p string) (string, error) {
	existing := p
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if errors.Is(err, os.ErrNotExist) {
		// dangling link: judge it by where it points
		resolved, err = danglingTarget(existing)
	}
	if err != nil {
		return "", err
	}

	full := filepath.Join(append([]string{resolved}, rest...)...)
	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsafePath, mustRel(root, p))
	}
	return full, nil
}

func danglingTarget(p string) (string, error) {
	link, err := os.Readlink(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(link) {
		return filepath.Clean(link), nil
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(p))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, link), nil
}

func mustRel(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return rel
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// within joins name onto root and rejects results outside root.
func within(root, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsafePath, name)
	}
	p := filepath.Join(root, name)
	if p != root && !strings.HasPrefix(p, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsafePath, name)
	}
	return p, nil
}

func topLevel(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	if name == "." {
		return ""
	}
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}
