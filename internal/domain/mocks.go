package domain

import (
	"context"
	"os"
	"path/filepath"
	"sort"
)

type MockSource struct {
	Release Release
	Err     error
	Called  int
}

func (m *MockSource) LatestRelease(ctx context.Context, owner, repo string) (Release, error) {
	m.Called++
	if m.Err != nil {
		return Release{}, m.Err
	}
	return m.Release, nil
}

type MockFetcher struct {
	Content []byte
	Err     error
	URLs    []string
}

func (m *MockFetcher) Download(ctx context.Context, url, dir, name string) (string, error) {
	m.URLs = append(m.URLs, url)
	if m.Err != nil {
		return "", m.Err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, m.Content, 0o644)
}

// MockExtractor writes a fake executable for every requested name.
type MockExtractor struct {
	Err    error
	Called int
}

func (m *MockExtractor) Extract(ctx context.Context, archive, dest string, names []string) ([]string, error) {
	m.Called++
	if m.Err != nil {
		return nil, m.Err
	}
	binDir := filepath.Join(dest, "release", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(binDir, n)
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type MockControl struct {
	Control Control
	Err     error
}

func (m *MockControl) Load(ctx context.Context) (Control, error) {
	return m.Control, m.Err
}

type MockStager struct {
	Dirs     []string
	Controls []Control
	Err      error
}

func (m *MockStager) Stage(ctx context.Context, dir string, control Control, payload []Payload) error {
	m.Dirs = append(m.Dirs, dir)
	m.Controls = append(m.Controls, control)
	if m.Err != nil {
		return m.Err
	}
	return os.MkdirAll(filepath.Join(dir, "DEBIAN"), 0o755)
}

type MockBuilder struct {
	Outputs []string
	Err     error
}

func (m *MockBuilder) Build(ctx context.Context, stagingDir, outPath string) error {
	m.Outputs = append(m.Outputs, outPath)
	if m.Err != nil {
		return m.Err
	}
	return os.WriteFile(outPath, []byte("!<arch>\n"), 0o644)
}

// MockIndex renders one line per .deb in the scanned pool directory.
type MockIndex struct {
	Err    error
	Called int
}

func (m *MockIndex) Generate(ctx context.Context, root, poolRel string) ([]byte, error) {
	m.Called++
	if m.Err != nil {
		return nil, m.Err
	}
	entries, err := os.ReadDir(filepath.Join(root, poolRel))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".deb" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var out []byte
	for _, n := range names {
		out = append(out, "Filename: "+filepath.ToSlash(filepath.Join(poolRel, n))+"\n\n"...)
	}
	return out, nil
}

type MockRepository struct {
	Pool      map[string]bool
	Published []string
	Err       error
}

func (m *MockRepository) Contains(control Control, v Version) (bool, error) {
	return m.Pool[control.ArtifactName(v)], nil
}

func (m *MockRepository) Publish(ctx context.Context, control Control, builtPath string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Pool == nil {
		m.Pool = map[string]bool{}
	}
	name := filepath.Base(builtPath)
	m.Pool[name] = true
	m.Published = append(m.Published, name)
	return name, os.Remove(builtPath)
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

type MockStatus struct {
	Snapshots []Snapshot
	Err       error
}

func (c *MockStatus) Write(ctx context.Context, s Snapshot) error {
	if c.Err != nil {
		return c.Err
	}
	c.Snapshots = append(c.Snapshots, s)
	return nil
}
