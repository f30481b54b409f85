package dpkg_exec

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/davarch/apt-publisher/internal/domain"
)

const (
	DefaultDebTool  = "dpkg-deb"
	DefaultScanTool = "dpkg-scanpackages"
)

// Builder shells out to dpkg-deb.
type Builder struct {
	bin            string
	rootOwnerGroup bool
}

func NewBuilder(bin string, rootOwnerGroup bool) *Builder {
	if bin == "" {
		bin = DefaultDebTool
	}
	return &Builder{bin: bin, rootOwnerGroup: rootOwnerGroup}
}

func (b *Builder) Args(stagingDir, outPath string) []string {
	args := []string{"--build"}
	if b.rootOwnerGroup {
		args = append(args, "--root-owner-group")
	}
	return append(args, stagingDir, outPath)
}

func (b *Builder) Build(ctx context.Context, stagingDir, outPath string) error {
	cmd := exec.CommandContext(ctx, b.bin, b.Args(stagingDir, outPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &domain.ToolError{Tool: b.bin, Output: string(out), Err: err}
	}
	return nil
}

// Scanner shells out to dpkg-scanpackages and returns its stdout verbatim.
type Scanner struct {
	bin string
}

func NewScanner(bin string) *Scanner {
	if bin == "" {
		bin = DefaultScanTool
	}
	return &Scanner{bin: bin}
}

// Generate scans poolRel from root so Filename fields are root-relative.
func (s *Scanner) Generate(ctx context.Context, root, poolRel string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, s.bin, "--multiversion", poolRel, "/dev/null")
	cmd.Dir = root
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &domain.ToolError{Tool: s.bin, Output: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
