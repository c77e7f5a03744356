package drvstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/troian/toml"

	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
)

const (
	ModeOnline  = "online"
	ModeOffline = "offline"

	DeviceSourceSetupAPI = "setupapi"
	DeviceSourceWMI      = "wmi"
)

var (
	DefaultCfgPath  string
	defaultLogPath  string
	defaultLockPath string
)

type Config struct {
	LogFile  string   `toml:"log"`
	LogLevel LogLevel `toml:"log_level"`

	Mode      string `toml:"mode"`       // "online" for the running system, "offline" for a mounted image
	ImagePath string `toml:"image_path"` // root of the mounted image, required in offline mode

	DeviceSource string  `toml:"device_source"` // "setupapi" or "wmi"
	WMITimeout   float64 `toml:"wmi_timeout"`   // seconds

	DismLogLevel   string `toml:"dism_log_level"` // "errors", "warnings" or "info"
	DismLogFile    string `toml:"dism_log_file"`
	DismScratchDir string `toml:"dism_scratch_dir"`

	LockFile     string `toml:"lock_file"`
	OutputFormat string `toml:"output_format"`
}

func NewConfig() *Config {
	return &Config{
		LogFile:      defaultLogPath,
		LogLevel:     LogLevelError,
		Mode:         ModeOnline,
		DeviceSource: DeviceSourceSetupAPI,
		WMITimeout:   10,
		DismLogLevel: dism.LogErrors.String(),
		LockFile:     defaultLockPath,
		OutputFormat: FormatText,
	}
}

func secToDuration(secs float64) time.Duration {
	return time.Duration(int64(float64(time.Second) * secs))
}

func (cfg *Config) DumpToml() string {
	buff := &bytes.Buffer{}
	err := toml.NewEncoder(buff).Encode(cfg)
	if err != nil {
		log.Errorf("DumpToml error: %s", err.Error())
		return ""
	}

	return buff.String()
}

// Validate checks the values that can't be fixed by falling back to a default.
func (cfg *Config) Validate() error {
	if !cfg.LogLevel.IsValid() {
		return fmt.Errorf("invalid log_level '%s'", cfg.LogLevel)
	}

	switch cfg.Mode {
	case ModeOnline:
	case ModeOffline:
		if cfg.ImagePath == "" {
			return fmt.Errorf("image_path is required in %s mode", ModeOffline)
		}
	default:
		return fmt.Errorf("invalid mode '%s'", cfg.Mode)
	}

	switch cfg.DeviceSource {
	case DeviceSourceSetupAPI:
	case DeviceSourceWMI:
		if cfg.WMITimeout <= 0 {
			return fmt.Errorf("wmi_timeout must be positive")
		}
	default:
		return fmt.Errorf("invalid device_source '%s'", cfg.DeviceSource)
	}

	if _, err := dism.ParseLogLevel(cfg.DismLogLevel); err != nil {
		return err
	}

	if _, err := NewExporter(cfg.OutputFormat); err != nil {
		return err
	}

	if cfg.LockFile != "" && !filepath.IsAbs(cfg.LockFile) {
		return fmt.Errorf("lock_file must be an absolute path: '%s'", cfg.LockFile)
	}

	return nil
}

// TryUpdateConfigFromFile applies the values set in configFilePath over cfg.
func TryUpdateConfigFromFile(cfg *Config, configFilePath string) error {
	_, err := toml.DecodeFile(configFilePath, cfg)
	if err != nil {
		return errors.Wrapf(err, "while parsing config file '%s'", configFilePath)
	}

	return nil
}

func GenerateDefaultConfigFile(cfg *Config, configFilePath string) error {
	dir := filepath.Dir(configFilePath)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.Wrapf(err, "failed to create the config dir: '%s'", dir)
	}

	f, err := os.OpenFile(configFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to create the default config file: '%s'", configFilePath)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// HandleAllConfigSetup loads the config file, writing one with the defaults first
// when it doesn't exist yet. The result is not validated: command line overrides
// are applied on top of it before calling Validate.
func HandleAllConfigSetup(configFilePath string) (*Config, error) {
	cfg := NewConfig()

	_, err := os.Stat(configFilePath)
	switch {
	case os.IsNotExist(err):
		log.Infof("Config file '%s' doesn't exist, creating it with the defaults", configFilePath)
		if err := GenerateDefaultConfigFile(cfg, configFilePath); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := TryUpdateConfigFromFile(cfg, configFilePath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
