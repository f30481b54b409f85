package repo_fs

import (
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

type Artifact struct {
	File    string
	Package string
	Version string
	Arch    string
}

// ParseArtifact splits <package>_<version>_<arch>.deb.
func ParseArtifact(file string) (Artifact, bool) {
	base, ok := strings.CutSuffix(file, ".deb")
	if !ok {
		return Artifact{}, false
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Artifact{}, false
	}
	return Artifact{File: file, Package: parts[0], Version: parts[1], Arch: parts[2]}, true
}

// Artifacts returns the pool contents of pkg ordered by version, oldest first.
// Versions that do not parse sort after the ones that do, by name.
func (r *Repository) Artifacts(pkg string) ([]Artifact, error) {
	names, err := r.List(pkg)
	if err != nil {
		return nil, err
	}

	out := make([]Artifact, 0, len(names))
	for _, n := range names {
		if a, ok := ParseArtifact(n); ok {
			out = append(out, a)
		}
	}
	SortArtifacts(out)
	return out, nil
}

func SortArtifacts(as []Artifact) {
	sort.SliceStable(as, func(i, j int) bool {
		vi, ei := goversion.NewVersion(as[i].Version)
		vj, ej := goversion.NewVersion(as[j].Version)
		switch {
		case ei == nil && ej == nil:
			return vi.LessThan(vj)
		case ei == nil:
			return true
		case ej == nil:
			return false
		default:
			return as[i].Version < as[j].Version
		}
	})
}
