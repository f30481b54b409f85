package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAssetNotFound  = errors.New("asset not found")
	ErrInvalidVersion = errors.New("invalid version")
	ErrControlField   = errors.New("invalid control field")
	ErrUnsafePath     = errors.New("unsafe archive path")
	ErrArtifactExists = errors.New("artifact already in pool")
)

// StatusError is a non-success HTTP response from the release host.
type StatusError struct {
	Op     string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
}

// ToolError is a failed external tool invocation.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, out)
}

func (e *ToolError) Unwrap() error { return e.Err }
