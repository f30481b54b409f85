package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

type Binary struct {
	Name       string `yaml:"name"`
	InstallDir string `yaml:"install_dir,omitempty"`
}

type Config struct {
	Source struct {
		APIURL  string        `yaml:"api_url"`
		Owner   string        `yaml:"owner"`
		Repo    string        `yaml:"repo"`
		Asset   string        `yaml:"asset"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"source"`

	Package struct {
		ControlFile   string   `yaml:"control_file"`
		VersionPrefix string   `yaml:"version_prefix"`
		Binaries      []Binary `yaml:"binaries"`
	} `yaml:"package"`

	Repo struct {
		Root      string `yaml:"root"`
		Suite     string `yaml:"suite"`
		Component string `yaml:"component"`
		XZ        bool   `yaml:"xz"`
	} `yaml:"repo"`

	Work struct {
		Dir  string `yaml:"dir"`
		Keep bool   `yaml:"keep"`
	} `yaml:"work"`

	Tools struct {
		DpkgDeb        string `yaml:"dpkg_deb"`
		ScanPackages   string `yaml:"scanpackages"`
		RootOwnerGroup bool   `yaml:"root_owner_group"`
	} `yaml:"tools"`

	Poll struct {
		Interval  time.Duration `yaml:"interval"`
		PauseFile string        `yaml:"pause_file"`
	} `yaml:"poll"`

	Status struct {
		Path string `yaml:"path"`
	} `yaml:"status"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file,omitempty"`
	} `yaml:"log"`

	Notify struct {
		Enabled bool   `yaml:"enabled"`
		Urgency string `yaml:"urgency,omitempty"`
	} `yaml:"notify"`
}

func Default() Config {
	var c Config

	c.Source.APIURL = "https://api.github.com"
	c.Source.Owner = "solana-labs"
	c.Source.Repo = "solana"
	c.Source.Asset = "solana-release-x86_64-unknown-linux-gnu.tar.bz2"
	c.Source.Timeout = 30 * time.Second

	c.Package.ControlFile = "control.json"
	c.Package.VersionPrefix = "v"
	c.Package.Binaries = []Binary{{Name: "solana-validator", InstallDir: "/usr/local/bin"}}

	c.Repo.Root = "/cryptobinaryapt"
	c.Repo.Suite = "stable"
	c.Repo.Component = "main"

	c.Work.Dir = "~/.cache/apt-publisher/work"

	c.Tools.DpkgDeb = "dpkg-deb"
	c.Tools.ScanPackages = "dpkg-scanpackages"
	c.Tools.RootOwnerGroup = true

	c.Poll.Interval = time.Hour
	c.Poll.PauseFile = "~/.cache/apt-publisher/paused"

	c.Status.Path = "~/.cache/apt-publisher/status.json"

	c.Log.Level = "info"
	c.Log.Format = "auto"

	return c
}

func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return c, err
		}
	}

	if v := os.Getenv("RELEASE_API_URL"); v != "" {
		c.Source.APIURL = v
	}

	if v := os.Getenv("RELEASE_OWNER"); v != "" {
		c.Source.Owner = v
	}

	if v := os.Getenv("RELEASE_REPO"); v != "" {
		c.Source.Repo = v
	}

	if v := os.Getenv("RELEASE_ASSET"); v != "" {
		c.Source.Asset = v
	}

	if v := os.Getenv("REPO_ROOT"); v != "" {
		c.Repo.Root = v
	}

	if v := os.Getenv("WORK_DIR"); v != "" {
		c.Work.Dir = v
	}

	if v := os.Getenv("CONTROL_FILE"); v != "" {
		c.Package.ControlFile = v
	}

	if v := os.Getenv("INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poll.Interval = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	c.Work.Dir = expandHome(c.Work.Dir)
	c.Repo.Root = expandHome(c.Repo.Root)
	c.Package.ControlFile = expandHome(c.Package.ControlFile)
	c.Poll.PauseFile = expandHome(c.Poll.PauseFile)
	c.Status.Path = expandHome(c.Status.Path)
	c.Log.File = expandHome(c.Log.File)

	// A relative control file is resolved next to the config file.
	if path != "" && c.Package.ControlFile != "" && !filepath.IsAbs(c.Package.ControlFile) {
		c.Package.ControlFile = filepath.Join(filepath.Dir(path), c.Package.ControlFile)
	}

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Hour
	}

	if c.Source.Timeout <= 0 {
		c.Source.Timeout = 30 * time.Second
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if c.Source.Owner == "" || c.Source.Repo == "" {
		errs = append(errs, errors.New("source.owner and source.repo are required"))
	}

	if c.Source.Asset == "" {
		errs = append(errs, errors.New("source.asset is required"))
	}

	if len(c.Package.Binaries) == 0 {
		errs = append(errs, errors.New("package.binaries must list at least one binary"))
	}

	for i, b := range c.Package.Binaries {
		if b.Name == "" || strings.ContainsAny(b.Name, `/\`) {
			errs = append(errs, fmt.Errorf("package.binaries[%d]: invalid name %q", i, b.Name))
		}
	}

	if c.Repo.Root == "" {
		errs = append(errs, errors.New("repo.root is required"))
	}

	if c.Work.Dir == "" {
		errs = append(errs, errors.New("work.dir is required"))
	}

	return errors.Join(errs...)
}

// Save writes c atomically under an exclusive lock on path.lock.
func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
