package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	packageName  = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)
	architecture = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

type ControlField struct {
	Key   string
	Value string
}

// Control holds Debian control fields in file order.
type Control struct {
	Fields []ControlField
}

func (c Control) Get(key string) (string, bool) {
	for _, f := range c.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value, true
		}
	}
	return "", false
}

func (c Control) Package() string {
	v, _ := c.Get("Package")
	return v
}

func (c Control) Architecture() string {
	v, _ := c.Get("Architecture")
	return v
}

// Validate requires Package and Architecture in Debian syntax. Both end up
// in pool paths and artifact names.
func (c Control) Validate() error {
	for _, f := range []struct {
		key string
		re  *regexp.Regexp
	}{
		{"Package", packageName},
		{"Architecture", architecture},
	} {
		v, ok := c.Get(f.key)
		if !ok || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is missing", ErrControlField, f.key)
		}
		if !f.re.MatchString(v) {
			return fmt.Errorf("%w: %s %q", ErrControlField, f.key, v)
		}
	}
	return nil
}

// WithVersion returns a copy with Version replaced in place, or appended when absent.
func (c Control) WithVersion(v Version) Control {
	out := Control{Fields: make([]ControlField, 0, len(c.Fields)+1)}
	found := false
	for _, f := range c.Fields {
		if strings.EqualFold(f.Key, "Version") {
			f.Value = v.String()
			found = true
		}
		out.Fields = append(out.Fields, f)
	}
	if !found {
		out.Fields = append(out.Fields, ControlField{Key: "Version", Value: v.String()})
	}
	return out
}

func (c Control) Render() []byte {
	var b strings.Builder
	for _, f := range c.Fields {
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ArtifactBase is <Package>_<Version>_<Architecture>.
func (c Control) ArtifactBase(v Version) string {
	return c.Package() + "_" + v.String() + "_" + c.Architecture()
}

func (c Control) ArtifactName(v Version) string {
	return c.ArtifactBase(v) + ".deb"
}
