package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Name         string `mapstructure:"name"`
		Packaged     bool   `mapstructure:"packaged"`
		BasePath     string `mapstructure:"base_path"`
		ResourcesDir string `mapstructure:"resources_dir"`
		LogLevel     string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	Collaborator struct {
		Binary      string `mapstructure:"binary"`
		Interpreter string `mapstructure:"interpreter"`
		Script      string `mapstructure:"script"`
		OutputDir   string `mapstructure:"output_dir"`
	} `mapstructure:"collaborator"`

	Window struct {
		Title  string `mapstructure:"title"`
		Width  int    `mapstructure:"width"`
		Height int    `mapstructure:"height"`
	} `mapstructure:"window"`

	Database struct {
		Driver   string `mapstructure:"driver"` // mysql | postgres | kosong = memory
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Archive struct {
		Enabled    bool   `mapstructure:"enabled"`
		Endpoint   string `mapstructure:"endpoint"`
		AccessKey  string `mapstructure:"accessKey"`
		SecretKey  string `mapstructure:"secretKey"`
		BucketName string `mapstructure:"bucketName"`
		Region     string `mapstructure:"region"`
		UseSSL     bool   `mapstructure:"useSSL"`
	} `mapstructure:"archive"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Neurally")
	v.SetDefault("app.packaged", false)
	v.SetDefault("app.resources_dir", "resources")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("collaborator.binary", filepath.Join("src", "scripts", "main.exe"))
	v.SetDefault("collaborator.interpreter", "python3")
	v.SetDefault("collaborator.script", filepath.Join("src", "scripts", "main.py"))
	v.SetDefault("window.title", "Neurally")
	v.SetDefault("window.width", 1024)
	v.SetDefault("window.height", 768)
	v.SetDefault("database.driver", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucketName", "neurally-sessions")

	v.SetDefault("database.port", 0)
	v.SetDefault("archive.useSSL", false)

	// env override hanya kebaca untuk key yang viper sudah kenal
	for _, k := range []string{
		"app.base_path", "collaborator.output_dir",
		"database.host", "database.user", "database.password", "database.name",
		"archive.endpoint", "archive.accessKey", "archive.secretKey", "archive.region",
	} {
		v.SetDefault(k, "")
	}
}

// Load baca config.yaml (optional) lalu override pakai env NEURALLY_*.
// A missing file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NEURALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// AppContext is the explicit runtime context handed to the bridge, broker
// and shell. It is built once at startup.
type AppContext struct {
	BasePath string
	Packaged bool
	Platform string
}

// IsWindows reports whether the compiled collaborator binary is used.
func (a AppContext) IsWindows() bool { return a.Platform == "windows" }

// Resolve returns p under BasePath; absolute paths are kept as they are.
func (a AppContext) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(a.BasePath, p)
}

// NewAppContext resolves the base resource directory: the configured
// base_path, else the working directory in development or
// <exe dir>/<resources_dir> when packaged.
func NewAppContext(cfg *Config) (AppContext, error) {
	ac := AppContext{Packaged: cfg.App.Packaged, Platform: runtime.GOOS}

	switch {
	case cfg.App.BasePath != "":
		ac.BasePath = cfg.App.BasePath
	case cfg.App.Packaged:
		exe, err := os.Executable()
		if err != nil {
			return ac, fmt.Errorf("locate executable: %w", err)
		}
		ac.BasePath = filepath.Join(filepath.Dir(exe), cfg.App.ResourcesDir)
	default:
		wd, err := os.Getwd()
		if err != nil {
			return ac, fmt.Errorf("working directory: %w", err)
		}
		ac.BasePath = wd
	}

	abs, err := filepath.Abs(ac.BasePath)
	if err != nil {
		return ac, err
	}
	ac.BasePath = abs
	return ac, nil
}

// OutputDir is where the collaborator writes plots and intermediate files.
func (c *Config) OutputDir(ac AppContext) string {
	if c.Collaborator.OutputDir != "" {
		return ac.Resolve(c.Collaborator.OutputDir)
	}
	// sama dengan cara runner resolve script
	return filepath.Join(filepath.Dir(ac.Resolve(c.Collaborator.Script)), "output")
}
