// Package config provides layered configuration loading for the padkey
// service. It merges Defaults -> JSON config file -> Environment Variables
// -> command-line overrides, with validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/padkey/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PADKEY_"

// DefaultDaysToKeep is substituted when days_to_keep is missing or invalid.
const DefaultDaysToKeep = 7

// Config holds the merged runtime configuration for the padkey service.
// Order of precedence (lowest → highest): Defaults → File → Environment → Overrides.
type Config struct {
	Addr          string      `koanf:"addr" validate:"ip_port"`
	DataDir       string      `koanf:"data_dir" validate:"safe_path"`
	ConfigFile    string      `koanf:"config_file"`
	Mode          domain.Mode `koanf:"server_data_mode" validate:"oneof=daily single"`
	DaysToKeep    int         `koanf:"days_to_keep"`
	PoolSize      ByteSize    `koanf:"pool_size" validate:"gte=256,lte=1073741824"`
	CachePools    int         `koanf:"cache_pools" validate:"gte=0"`
	MaxUpload     ByteSize    `koanf:"max_upload" validate:"gt=0"`
	DownloadRate  float64     `koanf:"download_rate" validate:"gte=0"`
	DownloadBurst int         `koanf:"download_burst" validate:"gte=0"`
	MetricsToken  string      `koanf:"metrics_token"`
	LogLevel      string      `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string      `koanf:"log_format" validate:"oneof=text json"`
}

// DefaultAppConfig holds the defaults applied before any other layer.
var DefaultAppConfig = Config{
	Addr:          ":3000",
	DataDir:       "./server_data",
	ConfigFile:    "./config.json",
	Mode:          domain.ModeDaily,
	DaysToKeep:    DefaultDaysToKeep,
	PoolSize:      10 << 20,
	CachePools:    2,
	MaxUpload:     16 << 20,
	DownloadRate:  0,
	DownloadBurst: 4,
	LogLevel:      "info",
	LogFormat:     "text",
}

// fileSettings is the persisted JSON document. Its keys predate the
// environment naming and are kept for compatibility with existing files.
type fileSettings struct {
	DaysToKeep     int    `json:"daysToKeep"`
	ServerDataMode string `json:"serverDataMode"`
}

// swappable for tests
var (
	defaultLoader = func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
	}
	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
			},
		}), nil)
	}
	fileLoader         = loadFile
	registerValidators = func(v *validator.Validate) error {
		if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
			return err
		}
		return v.RegisterValidation("safe_path", validSafePath)
	}
)

type options struct {
	overrides map[string]any
	bootstrap bool
	logger    *slog.Logger
}

// Option customizes Load.
type Option func(*options)

// WithOverrides applies values (typically from command-line flags) on top of
// every other layer. Keys use the koanf tag names, e.g. "data_dir".
func WithOverrides(m map[string]any) Option {
	return func(o *options) { o.overrides = m }
}

// WithBootstrap writes the config file with defaults when it does not exist.
func WithBootstrap() Option {
	return func(o *options) { o.bootstrap = true }
}

// WithLogger sets the logger used for configuration warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Load builds the configuration. Problems with server_data_mode or
// days_to_keep are logged as warnings and replaced by defaults; any other
// invalid value is an error.
func Load(opts ...Option) (*Config, error) {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	log := o.logger.With("domain", "config")

	// The file path itself may come from env or overrides, so resolve it first.
	k := koanf.New(".")
	if err := layer(k, o, ""); err != nil {
		return nil, err
	}
	path := k.String("config_file")
	if path != "" {
		k = koanf.New(".")
		if err := layer(k, o, path); err != nil {
			return nil, err
		}
	}
	normalize(k, log)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				StringToMode(),
				StringToByteSize(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string { return f.Tag.Get("koanf") })
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, describe(err)
	}
	if o.bootstrap && path != "" {
		bootstrapFile(path, log)
	}
	return &cfg, nil
}

// layer loads defaults, the optional file, env, and overrides into k.
func layer(k *koanf.Koanf, o options, path string) error {
	if err := defaultLoader(k); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := envLoader(k); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	for key, val := range o.overrides {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

// loadFile layers the persisted JSON settings onto k. A missing file is not
// an error. A malformed file is reported with a warning and ignored, so the
// service still starts with defaults.
func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), json.Parser()); err != nil {
		slog.Warn("config file unreadable, using defaults", "domain", "config", "path", path, "error", err)
		return nil
	}
	keys := []struct{ file, key string }{
		{"daysToKeep", "days_to_keep"},
		{"serverDataMode", "server_data_mode"},
	}
	for _, m := range keys {
		if m.key == "days_to_keep" && fk.Exists(m.file) {
			if _, isNum := fk.Get(m.file).(float64); !isNum {
				slog.Warn("days_to_keep in config file is not a number, ignoring", "domain", "config", "path", path, "value", fk.Get(m.file))
				continue
			}
		}
		if fk.Exists(m.file) {
			if err := k.Set(m.key, fk.Get(m.file)); err != nil {
				return err
			}
		}
	}
	return nil
}

// bootstrapFile writes the default settings when path does not exist.
func bootstrapFile(path string, log *slog.Logger) {
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return
	}
	doc := fileSettings{DaysToKeep: DefaultAppConfig.DaysToKeep, ServerDataMode: DefaultAppConfig.Mode.String()}
	b, err := marshalIndent(doc)
	if err == nil {
		if dir := filepath.Dir(path); dir != "." {
			err = os.MkdirAll(dir, 0o700)
		}
	}
	if err == nil {
		err = os.WriteFile(path, b, 0o600)
	}
	if err != nil {
		log.Warn("could not create config file", "path", path, "error", err)
		return
	}
	log.Info("config file created with defaults", "path", path, "days_to_keep", doc.DaysToKeep, "server_data_mode", doc.ServerDataMode)
}

// normalize replaces an unknown mode with daily and an unusable
// days_to_keep with the default, warning about each substitution.
func normalize(k *koanf.Koanf, log *slog.Logger) {
	rawMode := fmt.Sprint(k.Get("server_data_mode"))
	mode, err := domain.ParseMode(rawMode)
	if err != nil {
		log.Warn("invalid server_data_mode, using default", "value", rawMode, "default", DefaultAppConfig.Mode)
		mode = DefaultAppConfig.Mode
	}
	_ = k.Set("server_data_mode", mode.String())

	days, ok := toDays(k.Get("days_to_keep"))
	if !ok {
		if mode == domain.ModeDaily {
			log.Warn("invalid days_to_keep for daily mode, using default", "value", k.Get("days_to_keep"), "default", DefaultDaysToKeep)
		}
		days = DefaultDaysToKeep
	}
	_ = k.Set("days_to_keep", days)
}

// toDays accepts whole numbers. Strings only reach here from env or
// overrides; loadFile drops non-numeric file values. Values below
// KeepForever are kept and clamped to one pool by retention.
func toDays(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// SQLiteDSN returns the DSN for the ledger and metrics database inside DataDir.
func (c *Config) SQLiteDSN() string {
	return "file:" + filepath.Join(c.DataDir, "padkey.db") + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RetentionSummary describes how long keys stay valid.
func (c *Config) RetentionSummary() string {
	if c.Mode == domain.ModeSingle {
		return "single pool, kept indefinitely"
	}
	if c.DaysToKeep == domain.KeepForever {
		return "daily pools, kept indefinitely"
	}
	return fmt.Sprintf("daily pools, newest %d kept", max(1, c.DaysToKeep))
}
