// Package config resolves where the compatibility check finds the VM, its
// contract and its test vectors. Settings come from built-in defaults, an
// optional t81compat.toml, then environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/t81dev/t81-lang/contract"
	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/runner"
	"github.com/t81dev/t81-lang/smoke"
)

// FileName is the optional configuration file at the front-end root.
const FileName = "t81compat.toml"

// Environment variables.
const (
	EnvVMDir   = "T81_VM_DIR"
	EnvLane    = "VM_COMPAT_LANE"
	EnvTimeout = "T81_VM_TIMEOUT"
	EnvVerbose = "T81_COMPAT_VERBOSE"
)

// DefaultTimeout bounds each subprocess unless configured otherwise.
const DefaultTimeout = 15 * time.Minute

// Config is the resolved configuration of one compatibility pass.
type Config struct {
	Lane     string   `toml:"lane"`
	Verbose  int      `toml:"verbose"`
	Contract Contract `toml:"contract"`
	VM       VM       `toml:"vm"`
	Vectors  Vectors  `toml:"vectors"`

	// Root is the front-end repository root (set at load time).
	Root string `toml:"-"`
	// File is the configuration file that was read, if any.
	File string `toml:"-"`
}

// Contract locates the two contract documents.
type Contract struct {
	Local    string `toml:"local"`    // relative to Root
	External string `toml:"external"` // relative to the VM dir
}

// VM describes the VM checkout and how to build and run it.
type VM struct {
	Dir      string   `toml:"dir"` // relative to Root
	Build    []string `toml:"build"`
	Binary   string   `toml:"binary"`
	RunFlags []string `toml:"run_flags"`
	Timeout  string   `toml:"timeout"`
}

// Vectors locates the smoke programs, relative to the VM dir.
type Vectors struct {
	Success string `toml:"success"`
	Fault   string `toml:"fault"`
}

// Default returns the configuration used when no file is present.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Contract: Contract{
			Local:    contract.LocalPath,
			External: contract.ExternalPath,
		},
		VM: VM{
			Dir:      filepath.Join("..", "t81-vm"),
			Build:    append([]string(nil), runner.DefaultBuild...),
			Binary:   runner.DefaultBinary,
			RunFlags: append([]string(nil), runner.DefaultRunFlags...),
			Timeout:  DefaultTimeout.String(),
		},
		Vectors: Vectors{
			Success: smoke.DefaultSuccessVector,
			Fault:   smoke.DefaultFaultVector,
		},
	}
}

// Load reads dir/t81compat.toml over the defaults for root dir.
func Load(dir string) (*Config, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, failure.Wrapf(failure.ConfigurationError, err, "cannot resolve path %s", dir)
	}
	return LoadFile(root, filepath.Join(root, FileName))
}

// LoadFile reads the configuration file at path over the defaults for root.
func LoadFile(root, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrapf(failure.ConfigurationError, err, "cannot read %s", path)
	}

	c := Default(root)
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, failure.Wrapf(failure.ConfigurationError, err, "parse error in %s", path)
	}
	c.Root = root
	c.File = path
	if len(c.VM.Build) == 0 {
		return nil, failure.Newf(failure.ConfigurationError, "%s: vm.build must not be empty", path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to the front-end root: the first
// directory holding t81compat.toml or the local contract marker. Without
// either, startDir is the root and defaults apply.
func FindAndLoad(startDir string) (*Config, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, failure.Wrapf(failure.ConfigurationError, err, "cannot resolve path %s", startDir)
	}

	for dir := start; ; {
		if exists(filepath.Join(dir, FileName)) {
			return Load(dir)
		}
		if exists(filepath.Join(dir, contract.LocalPath)) {
			return Default(dir), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(start), nil
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ApplyEnv overlays environment settings. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if dir := getenv(EnvVMDir); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return failure.Wrapf(failure.ConfigurationError, err, "%s=%s", EnvVMDir, dir)
		}
		c.VM.Dir = abs
	}
	if lane := getenv(EnvLane); lane != "" {
		c.Lane = lane
	}
	if timeout := getenv(EnvTimeout); timeout != "" {
		c.VM.Timeout = timeout
	}
	if v := getenv(EnvVerbose); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return failure.Wrapf(failure.ConfigurationError, err, "%s=%s", EnvVerbose, v)
		}
		c.Verbose = n
	}
	return nil
}

// LaneMode returns the configured lane.
func (c *Config) LaneMode() contract.Lane {
	return contract.ParseLane(c.Lane)
}

// Timeout parses vm.timeout. "0" or "" disables the limit.
func (c *Config) Timeout() (time.Duration, error) {
	s := strings.TrimSpace(c.VM.Timeout)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, failure.Newf(failure.ConfigurationError, "invalid VM timeout %q", c.VM.Timeout)
	}
	return d, nil
}

// VMDir returns the absolute VM repository root.
func (c *Config) VMDir() string {
	return c.resolve(c.Root, c.VM.Dir)
}

// CheckVMDir fails with MissingArtifact when the VM checkout is absent.
func (c *Config) CheckVMDir() error {
	dir := c.VMDir()
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure.Newf(failure.MissingArtifact, "t81-vm path not found: %s", dir)
		}
		return failure.Wrapf(failure.EnvironmentError, err, "cannot stat %s", dir)
	}
	if !info.IsDir() {
		return failure.Newf(failure.MissingArtifact, "t81-vm path is not a directory: %s", dir)
	}
	return nil
}

// LocalContractPath returns the absolute path of the front-end contract.
func (c *Config) LocalContractPath() string {
	return c.resolve(c.Root, c.Contract.Local)
}

// ExternalContractPath returns the absolute path of the VM contract.
func (c *Config) ExternalContractPath() string {
	return c.resolve(c.VMDir(), c.Contract.External)
}

// SuccessVector returns the absolute path of the expected-success program.
func (c *Config) SuccessVector() string {
	return c.resolve(c.VMDir(), c.Vectors.Success)
}

// FaultVector returns the absolute path of the expected-fault program.
func (c *Config) FaultVector() string {
	return c.resolve(c.VMDir(), c.Vectors.Fault)
}

// RunnerOptions converts the VM settings for runner.New.
func (c *Config) RunnerOptions() (runner.Options, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return runner.Options{}, err
	}
	return runner.Options{
		Dir:      c.VMDir(),
		Build:    c.VM.Build,
		Binary:   c.VM.Binary,
		RunFlags: c.VM.RunFlags,
		Timeout:  timeout,
	}, nil
}

func (c *Config) resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
