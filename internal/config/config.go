// Package config loads and validates the process configuration. Options
// are supplied once at startup (file, environment, or .env); changes
// require a restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

const (
	BackendYandexDisk = "yadisk"
	BackendS3         = "s3"

	EnvPrefix = "MIRRORBOX"
)

var (
	home, _           = os.UserHomeDir()
	DefaultStateDir   = filepath.Join(home, ".mirrorbox")
	DefaultConfigPath = filepath.Join(DefaultStateDir, "config.yaml")
)

// S3 holds the settings of the S3 backend.
type S3 struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	StorageClass    string `mapstructure:"storage_class"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type Config struct {
	Path string `mapstructure:"-"` // config file actually used, if any

	Root       string `mapstructure:"root"`        // watched local directory
	Backend    string `mapstructure:"backend"`     // yadisk | s3
	Token      string `mapstructure:"token"`       // yadisk oauth token
	RemoteRoot string `mapstructure:"remote_root"` // cloud folder the mirror lives under
	StateDir   string `mapstructure:"state_dir"`   // snapshot db + lock file

	Interval         time.Duration `mapstructure:"interval"`
	OpTimeout        time.Duration `mapstructure:"op_timeout"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryWait        time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait     time.Duration `mapstructure:"retry_max_wait"`
	Concurrency      int           `mapstructure:"concurrency"`

	ThrottledTypes []string `mapstructure:"throttled_types"`
	IgnorePatterns []string `mapstructure:"ignore"`
	PruneEmptyDirs bool     `mapstructure:"prune_empty_dirs"`
	VerifyNames    bool     `mapstructure:"verify_names"`

	S3 S3 `mapstructure:"s3"`
}

// Load reads configuration from the given file (or the default search
// path), layered under MIRRORBOX_* environment variables. A `.env` in the
// working directory is folded into the environment first; that is where
// the token usually lives.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultStateDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("backend", BackendYandexDisk)
	v.SetDefault("token", "")
	v.SetDefault("remote_root", "MirrorBox")
	v.SetDefault("state_dir", DefaultStateDir)
	v.SetDefault("interval", 30*time.Second)
	v.SetDefault("op_timeout", 5*time.Minute)
	v.SetDefault("retry_max_attempts", 5)
	v.SetDefault("retry_wait", time.Second)
	v.SetDefault("retry_max_wait", 30*time.Second)
	v.SetDefault("concurrency", 4)
	v.SetDefault("throttled_types", []string{"archive", "video", "binary"})
	v.SetDefault("prune_empty_dirs", false)
	v.SetDefault("verify_names", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.storage_class", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
}

// Validate checks the config and resolves relative paths in place.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root directory not set")
	}
	root, err := utils.ResolvePath(c.Root)
	if err != nil {
		return fmt.Errorf("config: root: %w", err)
	}
	if !utils.DirExists(root) {
		return fmt.Errorf("config: root %q does not exist or is not a directory", root)
	}
	c.Root = root

	stateDir, err := utils.ResolvePath(c.StateDir)
	if err != nil {
		return fmt.Errorf("config: state_dir: %w", err)
	}
	c.StateDir = stateDir

	switch c.Backend {
	case BackendYandexDisk:
		if c.Token == "" {
			return errors.New("config: yadisk backend needs a token (MIRRORBOX_TOKEN)")
		}
		if c.RemoteRoot == "" {
			return errors.New("config: remote_root not set")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("config: s3 backend needs a bucket")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.Interval <= 0 {
		return errors.New("config: interval must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	return nil
}
