package dpkg_exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script standing in for a dpkg tool.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestBuilder_Args(t *testing.T) {
	require.Equal(t, []string{"--build", "--root-owner-group", "stage", "out.deb"}, NewBuilder("", true).Args("stage", "out.deb"))
	require.Equal(t, []string{"--build", "stage", "out.deb"}, NewBuilder("", false).Args("stage", "out.deb"))
}

func TestBuilder_Build(t *testing.T) {
	tool := fakeTool(t, `for last; do :; done; echo deb > "$last"`)
	out := filepath.Join(t.TempDir(), "app_1.0_amd64.deb")

	require.NoError(t, NewBuilder(tool, false).Build(context.Background(), t.TempDir(), out))
	require.FileExists(t, out)
}

func TestBuilder_FailureCarriesOutput(t *testing.T) {
	tool := fakeTool(t, `echo "dpkg-deb: error: missing Maintainer" >&2; exit 2`)

	err := NewBuilder(tool, false).Build(context.Background(), t.TempDir(), "x.deb")

	var te *domain.ToolError
	require.True(t, errors.As(err, &te))
	require.Contains(t, te.Error(), "missing Maintainer")
}

func TestScanner_RunsFromRoot(t *testing.T) {
	tool := fakeTool(t, `echo "cwd=$(pwd) pool=$2"`)
	root := t.TempDir()

	out, err := NewScanner(tool).Generate(context.Background(), root, "pool/main/a/app")
	require.NoError(t, err)

	require.Contains(t, string(out), "pool=pool/main/a/app")
	require.Contains(t, string(out), filepath.Base(root))
}

func TestScanner_Failure(t *testing.T) {
	tool := fakeTool(t, `echo boom >&2; exit 1`)

	_, err := NewScanner(tool).Generate(context.Background(), t.TempDir(), "pool")
	require.ErrorContains(t, err, "boom")
}
