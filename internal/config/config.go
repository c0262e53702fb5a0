// Package config loads client settings from the config file, CLIPSYNC_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/localstore"
)

const (
	appName   = "clipsync"
	envPrefix = "CLIPSYNC"
)

// Remote describes the replica connection.
type Remote struct {
	Addr      string
	Token     string
	Insecure  bool
	CACert    string
	PageSize  int
	BatchSize int // documents per upload; must not exceed the replica's -max-batch
}

// Sync tunes the sync coordinator.
type Sync struct {
	Interval         time.Duration
	Timeout          time.Duration
	InitialPageLimit int
	Passphrase       string
}

// Config is the resolved client configuration.
type Config struct {
	DataDir   string
	Storage   string
	LogLevel  string
	LogFile   string
	Remote    Remote
	Sync      Sync
	Retention localstore.Retention
	InboxDir  string
	File      string // config file actually read, empty if none
}

// DefaultPath is the config file location under the XDG config home.
func DefaultPath() string { return filepath.Join(xdg.ConfigHome, appName, "config.yaml") }

// DefaultDataDir is the data directory under the XDG data home.
func DefaultDataDir() string { return filepath.Join(xdg.DataHome, appName) }

// Defaults lists every key with its default value.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":                DefaultDataDir(),
		"storage.backend":         kv.BackendSQLite,
		"log.level":               "warn",
		"log.file":                "",
		"remote.addr":             "",
		"remote.token":            "",
		"remote.insecure":         false,
		"remote.cacert":           "",
		"remote.page_size":        200,
		"remote.batch_size":       200,
		"sync.interval":           "5m",
		"sync.timeout":            "60s",
		"sync.initial_page_limit": 0,
		"sync.passphrase":         "",
		"retention.max_age_days":  0,
		"retention.max_items":     0,
		"inbox.dir":               "",
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or the default path when empty) into v and resolves the
// configuration. A missing default file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	explicit := file != ""
	if !explicit {
		file = DefaultPath()
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		DataDir:  v.GetString("data_dir"),
		Storage:  v.GetString("storage.backend"),
		LogLevel: v.GetString("log.level"),
		LogFile:  v.GetString("log.file"),
		Remote: Remote{
			Addr:      v.GetString("remote.addr"),
			Token:     v.GetString("remote.token"),
			Insecure:  v.GetBool("remote.insecure"),
			CACert:    v.GetString("remote.cacert"),
			PageSize:  v.GetInt("remote.page_size"),
			BatchSize: v.GetInt("remote.batch_size"),
		},
		Sync: Sync{
			Interval:         v.GetDuration("sync.interval"),
			Timeout:          v.GetDuration("sync.timeout"),
			InitialPageLimit: v.GetInt("sync.initial_page_limit"),
			Passphrase:       v.GetString("sync.passphrase"),
		},
		Retention: localstore.Retention{
			MaxAgeDays: v.GetInt("retention.max_age_days"),
			MaxItems:   v.GetInt("retention.max_items"),
		},
		InboxDir: v.GetString("inbox.dir"),
		File:     v.ConfigFileUsed(),
	}
	if _, err := os.Stat(cfg.File); err != nil {
		cfg.File = ""
	}
	if cfg.InboxDir == "" {
		cfg.InboxDir = filepath.Join(cfg.DataDir, "inbox")
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var problems []error
	if c.DataDir == "" {
		problems = append(problems, errors.New("data_dir is empty"))
	}
	switch c.Storage {
	case kv.BackendSQLite, kv.BackendDir, kv.BackendMemory:
	default:
		problems = append(problems, fmt.Errorf("storage.backend: unknown backend %q", c.Storage))
	}
	if c.Sync.Interval <= 0 {
		problems = append(problems, errors.New("sync.interval must be positive"))
	}
	if c.Sync.Timeout <= 0 {
		problems = append(problems, errors.New("sync.timeout must be positive"))
	}
	if c.Sync.InitialPageLimit < 0 || c.Remote.PageSize < 0 || c.Remote.BatchSize < 0 {
		problems = append(problems, errors.New("page limits must not be negative"))
	}
	if c.Retention.MaxAgeDays < 0 || c.Retention.MaxItems < 0 {
		problems = append(problems, errors.New("retention limits must not be negative"))
	}
	return errors.Join(problems...)
}

// LockPath is the advisory lock file that serializes sync across processes.
func (c Config) LockPath() string { return filepath.Join(c.DataDir, "sync.lock") }

// StoreLockPath is the advisory lock file held while a process rewrites the collection.
func (c Config) StoreLockPath() string { return filepath.Join(c.DataDir, "store.lock") }

// BlobDir holds binary payloads.
func (c Config) BlobDir() string { return filepath.Join(c.DataDir, "blobs") }

// WriteDefaults writes a YAML file with every default key.
// An existing file is left alone unless force is set.
func WriteDefaults(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	doc := map[string]any{}
	for k, val := range Defaults() {
		setNested(doc, strings.Split(k, "."), val)
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func setNested(m map[string]any, path []string, val any) {
	if len(path) == 1 {
		m[path[0]] = val
		return
	}
	child, ok := m[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[path[0]] = child
	}
	setNested(child, path[1:], val)
}
