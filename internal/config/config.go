package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "/etc/thermalctl.toml"
	DefaultEnvPrefix  = "THERMALCTL"
	DefaultLogLevel   = "warning"

	configEnv = "CONFIG"
)

type Config struct {
	ThermalInterval time.Duration `mapstructure:"thermal_interval" validate:"gt=0"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval" validate:"gt=0"`
	Backoff         time.Duration `mapstructure:"backoff" validate:"gt=0"`
	ActuationRetry  time.Duration `mapstructure:"actuation_retry" validate:"gt=0"`

	// Threshold overrides in °C; 0 derives from the hardware.
	Comfort   float64 `mapstructure:"comfort" validate:"gte=0,lte=150"`
	Warning   float64 `mapstructure:"warning" validate:"gte=0,lte=150"`
	Critical  float64 `mapstructure:"critical" validate:"gte=0,lte=150"`
	Emergency float64 `mapstructure:"emergency" validate:"gte=0,lte=150"`

	FanLow    int  `mapstructure:"fan_low" validate:"gte=0,lte=100"`
	FanMedium int  `mapstructure:"fan_medium" validate:"gte=0,lte=100"`
	FanHigh   int  `mapstructure:"fan_high" validate:"gte=0,lte=100"`
	FanMax    int  `mapstructure:"fan_max" validate:"gte=0,lte=100"`
	AutoFan   bool `mapstructure:"auto_fan"`

	Monitor  bool     `mapstructure:"monitor"`
	Mode     string   `mapstructure:"mode" validate:"omitempty,oneof=performance balanced powersaver emergency"`
	Patterns []string `mapstructure:"patterns" validate:"dive,required"`

	HistorySize int           `mapstructure:"history_size" validate:"gt=0"`
	TrailPath   string        `mapstructure:"trail_path"`
	TrailMax    int           `mapstructure:"trail_max" validate:"gt=0"`
	TrailFlush  time.Duration `mapstructure:"trail_flush" validate:"gt=0"`

	LogFile       string `mapstructure:"log_file"`
	LogLevel      string `mapstructure:"log_level"`
	Debug         bool   `mapstructure:"debug"`
	Verbose       bool   `mapstructure:"verbose"`
	MetricsListen string `mapstructure:"metrics_listen" validate:"omitempty,hostname_port"`

	WaitRetries  int           `mapstructure:"wait_retries" validate:"gt=0"`
	WaitCooldown time.Duration `mapstructure:"wait_cooldown" validate:"gt=0"`

	// Root prefixes every sysfs, procfs and device path.
	Root   string `mapstructure:"root" validate:"required"`
	PIDDir string `mapstructure:"pid_dir"`
}

var defaults = map[string]any{
	"thermal_interval": 2 * time.Second,
	"monitor_interval": 5 * time.Second,
	"backoff":          10 * time.Second,
	"actuation_retry":  30 * time.Second,
	"comfort":          0.0,
	"warning":          0.0,
	"critical":         0.0,
	"emergency":        0.0,
	"fan_low":          30,
	"fan_medium":       50,
	"fan_high":         75,
	"fan_max":          100,
	"auto_fan":         true,
	"monitor":          false,
	"mode":             "",
	"patterns": []string{
		"ollama", "llama-server", "llama.cpp", "koboldcpp", "text-generation",
		"vllm", "torch", "transformers", "stable-diffusion", "comfyui",
	},
	"history_size":   100,
	"trail_path":     "/var/lib/thermalctl/trail.json",
	"trail_max":      1000,
	"trail_flush":    30 * time.Second,
	"log_file":       "",
	"log_level":      DefaultLogLevel,
	"debug":          false,
	"verbose":        false,
	"metrics_listen": "",
	"wait_retries":   10,
	"wait_cooldown":  10 * time.Second,
	"root":           "/",
	"pid_dir":        "",
}

// RegisterFlags defines the command-line flags Load understands.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Configuration file (default "+DefaultConfigFile+")")
	flags.Duration("thermal-interval", 2*time.Second, "Interval between thermal decisions")
	flags.Duration("monitor-interval", 5*time.Second, "Interval between monitor samples")
	flags.Bool("monitor", false, "Only monitor and log, never actuate")
	flags.Bool("auto-fan", true, "Drive fans from the temperature band")
	flags.String("mode", "", "Initial power mode (performance, balanced, powersaver, emergency)")
	flags.StringSlice("patterns", nil, "Workload process patterns")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("log-file", "", "Plain-text tick and alert log")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("metrics-listen", "", "Address for /metrics and /status, empty to disable")
	flags.String("trail-path", "", "JSON snapshot trail file")
	flags.String("root", "/", "Filesystem root for sysfs and procfs access")
}

// Load merges defaults, the TOML file, THERMALCTL_* environment variables
// and flags, in increasing priority. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
		}
	}

	path, explicit := configPath(o, flags)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configPath(o options, flags *pflag.FlagSet) (string, bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String(), true
		}
	}
	if p := os.Getenv(o.envPrefix + "_" + configEnv); p != "" {
		return p, true
	}

	return DefaultConfigFile, false
}

// Validate checks field constraints and the log level.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if err := validator.New().Struct(c); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}
