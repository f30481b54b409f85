package domain

import (
	"fmt"
	"strings"
	"unicode"
)

type Asset struct {
	Name        string
	DownloadURL string
	Size        int64
}

type Release struct {
	Tag    string
	Assets []Asset
}

// AssetURL resolves the download URL of the asset with exactly this name.
func (r Release) AssetURL(name string) (string, error) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a.DownloadURL, nil
		}
	}
	return "", fmt.Errorf("%w: %q in release %s", ErrAssetNotFound, name, r.Tag)
}

type Version string

const DefaultVersionPrefix = "v"

// NormalizeVersion strips every leading prefix character from tag.
func NormalizeVersion(tag, prefix string) (Version, error) {
	v := strings.TrimSpace(tag)
	if prefix != "" {
		v = strings.TrimLeft(v, prefix)
	}

	if v == "" || v == "." || strings.Contains(v, "..") || strings.ContainsAny(v, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, tag)
	}
	for _, r := range v {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidVersion, tag)
		}
	}

	return Version(v), nil
}

func (v Version) String() string { return string(v) }

const DefaultInstallDir = "/usr/local/bin"

type Binary struct {
	Name       string
	InstallDir string
}

// InstallPath is the path of the binary relative to the package root.
func (b Binary) InstallPath() string {
	dir := b.InstallDir
	if dir == "" {
		dir = DefaultInstallDir
	}
	return strings.TrimPrefix(strings.TrimSuffix(dir, "/"), "/") + "/" + b.Name
}

// Payload pairs an extracted file with its place in the package tree.
type Payload struct {
	Source string
	Binary Binary
}

type Outcome string

const (
	OutcomePublished    Outcome = "published"
	OutcomeUpToDate     Outcome = "up_to_date"
	OutcomeAssetMissing Outcome = "asset_missing"
	OutcomeFailed       Outcome = "failed"
)

type Stage string

const (
	StageNone     Stage = ""
	StageConfig   Stage = "config"
	StageLocate   Stage = "locate"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageAssemble Stage = "assemble"
	StagePublish  Stage = "publish"
)

// Report is the result of one pipeline cycle.
type Report struct {
	RunID    string
	Outcome  Outcome
	Stage    Stage
	Tag      string
	Version  Version
	Artifact string
	Err      error
}

func (r Report) Failed() bool { return r.Outcome == OutcomeFailed }

type Snapshot struct {
	Report   Report
	Finished int64
}
