package status_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/davarch/apt-publisher/internal/domain"
)

type FSStatus struct {
	path string
}

func New(path string) *FSStatus { return &FSStatus{path: path} }

// Record is the on-disk shape of the last cycle.
type Record struct {
	RunID    string `json:"run_id"`
	Outcome  string `json:"outcome"`
	Stage    string `json:"stage,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Version  string `json:"version,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	Error    string `json:"error,omitempty"`
	Finished int64  `json:"finished"`
}

func (c *FSStatus) Write(_ context.Context, s domain.Snapshot) error {
	if c.path == "" {
		return errors.New("status path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	rec := Record{
		RunID:    s.Report.RunID,
		Outcome:  string(s.Report.Outcome),
		Stage:    string(s.Report.Stage),
		Tag:      s.Report.Tag,
		Version:  s.Report.Version.String(),
		Artifact: s.Report.Artifact,
		Finished: s.Finished,
	}
	if s.Report.Err != nil {
		rec.Error = s.Report.Err.Error()
	}

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, c.path)
}

func (c *FSStatus) Read() (Record, error) {
	var rec Record
	b, err := os.ReadFile(c.path)
	if err != nil {
		return rec, err
	}
	return rec, json.Unmarshal(b, &rec)
}
