package staging_fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/davarch/apt-publisher/internal/domain"
)

// TreeMode is applied to every directory and file of the staging tree.
// dpkg-deb rejects control directories with group/other write bits.
const TreeMode fs.FileMode = 0o755

type Stager struct{}

func New() *Stager { return &Stager{} }

// Stage lays out dir as a Debian package root: DEBIAN/control plus each
// payload moved to its install path.
func (s *Stager) Stage(ctx context.Context, dir string, control domain.Control, payload []domain.Payload) error {
	debian := filepath.Join(dir, "DEBIAN")
	if err := os.MkdirAll(debian, TreeMode); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(debian, "control"), control.Render(), 0o644); err != nil {
		return fmt.Errorf("write control: %w", err)
	}

	for _, p := range payload {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(p.Binary.InstallPath()))
		if err := os.MkdirAll(filepath.Dir(target), TreeMode); err != nil {
			return err
		}
		if err := move(p.Source, target); err != nil {
			return fmt.Errorf("stage %s: %w", p.Binary.Name, err)
		}
	}

	return chmodTree(dir, TreeMode)
}

func chmodTree(root string, mode fs.FileMode) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		return os.Chmod(path, mode)
	})
}

func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var le *os.LinkError
	if !errors.As(err, &le) || !errors.Is(le.Err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, TreeMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
