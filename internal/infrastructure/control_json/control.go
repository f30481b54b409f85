package control_json

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davarch/apt-publisher/internal/domain"
)

// File reads Debian control fields from a JSON object, keeping key order.
type File struct {
	path string
}

func New(path string) *File { return &File{path: path} }

func (f *File) Load(_ context.Context) (domain.Control, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return domain.Control{}, err
	}

	c, err := Parse(b)
	if err != nil {
		return domain.Control{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return c, nil
}

func Parse(b []byte) (domain.Control, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return domain.Control{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return domain.Control{}, errors.New("control must be a JSON object")
	}

	var c domain.Control
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return domain.Control{}, err
		}
		key := kt.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return domain.Control{}, fmt.Errorf("field %s: %w", key, err)
		}

		val, err := fieldValue(raw)
		if err != nil {
			return domain.Control{}, fmt.Errorf("field %s: %w", key, err)
		}
		c.Fields = append(c.Fields, domain.ControlField{Key: key, Value: val})
	}

	if _, err := dec.Token(); err != nil {
		return domain.Control{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Control{}, errors.New("trailing data after control object")
	}

	return c, c.Validate()
}

func fieldValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	switch strings.TrimSpace(string(raw))[0] {
	case '{', '[':
		return "", errors.New("nested values are not supported")
	}
	if string(raw) == "null" {
		return "", nil
	}
	return string(raw), nil
}
