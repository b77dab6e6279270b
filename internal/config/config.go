// Package config loads panic-list.toml and merges it with environment
// overrides and defaults.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"panic-list/internal/errors"
)

// FileName is the configuration file looked up in the cargo root.
const FileName = "panic-list.toml"

// EnvPrefix prefixes every environment override, e.g.
// PANIC_LIST_ANALYSIS_MAX_DEPTH=4.
const EnvPrefix = "PANIC_LIST"

var validate = validator.New()

// Config represents the complete panic-list configuration
type Config struct {
	Analysis AnalysisConfig `toml:"analysis" mapstructure:"analysis"`
	Build    BuildConfig    `toml:"build" mapstructure:"build"`
	Tools    ToolsConfig    `toml:"tools" mapstructure:"tools"`
	Output   OutputConfig   `toml:"output" mapstructure:"output"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
}

// AnalysisConfig controls the backward search
type AnalysisConfig struct {
	MaxDepth    int    `toml:"max_depth" mapstructure:"max_depth" validate:"gte=0,lte=64"`
	AbortSymbol string `toml:"abort_symbol" mapstructure:"abort_symbol" validate:"required"`
	Demangle    bool   `toml:"demangle" mapstructure:"demangle"`
	Annotate    bool   `toml:"annotate" mapstructure:"annotate"`
}

// BuildConfig controls how the crate is compiled to bitcode
type BuildConfig struct {
	Package           string   `toml:"package" mapstructure:"package"`
	Profile           string   `toml:"profile" mapstructure:"profile" validate:"required"`
	Features          []string `toml:"features" mapstructure:"features"`
	NoDefaultFeatures bool     `toml:"no_default_features" mapstructure:"no_default_features"`
	OnlyCore          bool     `toml:"only_core" mapstructure:"only_core"`
	Clean             bool     `toml:"clean" mapstructure:"clean"`
	InWorkspace       bool     `toml:"in_workspace" mapstructure:"in_workspace"`
}

// ToolsConfig names the external programs that are invoked
type ToolsConfig struct {
	Cargo     string `toml:"cargo" mapstructure:"cargo" validate:"required"`
	Toolchain string `toml:"toolchain" mapstructure:"toolchain" validate:"omitempty,startswith=+"`
	LlvmNm    string `toml:"llvm_nm" mapstructure:"llvm_nm" validate:"required"`
	LlvmLto   string `toml:"llvm_lto" mapstructure:"llvm_lto" validate:"required"`
	Opt       string `toml:"opt" mapstructure:"opt" validate:"required"`
	OptLevel  string `toml:"opt_level" mapstructure:"opt_level" validate:"oneof=-O0 -O1 -O2 -O3"`
}

// OutputConfig contains report output settings
type OutputConfig struct {
	Path   string `toml:"path" mapstructure:"path"`
	Format string `toml:"format" mapstructure:"format" validate:"oneof=text json yaml"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `toml:"level" mapstructure:"level" validate:"oneof=debug info warn warning error"`
	File  string `toml:"file" mapstructure:"file"`
}

// HistoryConfig controls the run history database
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxDepth:    10,
			AbortSymbol: "rust_begin_unwind",
		},
		Build: BuildConfig{
			Profile:  "release",
			Features: []string{},
		},
		Tools: ToolsConfig{
			Cargo:     "cargo",
			Toolchain: "+nightly",
			LlvmNm:    "llvm-nm",
			LlvmLto:   "llvm-lto",
			Opt:       "opt",
			OptLevel:  "-O1",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("analysis.max_depth", d.Analysis.MaxDepth)
	v.SetDefault("analysis.abort_symbol", d.Analysis.AbortSymbol)
	v.SetDefault("analysis.demangle", d.Analysis.Demangle)
	v.SetDefault("analysis.annotate", d.Analysis.Annotate)

	v.SetDefault("build.package", d.Build.Package)
	v.SetDefault("build.profile", d.Build.Profile)
	v.SetDefault("build.features", d.Build.Features)
	v.SetDefault("build.no_default_features", d.Build.NoDefaultFeatures)
	v.SetDefault("build.only_core", d.Build.OnlyCore)
	v.SetDefault("build.clean", d.Build.Clean)
	v.SetDefault("build.in_workspace", d.Build.InWorkspace)

	v.SetDefault("tools.cargo", d.Tools.Cargo)
	v.SetDefault("tools.toolchain", d.Tools.Toolchain)
	v.SetDefault("tools.llvm_nm", d.Tools.LlvmNm)
	v.SetDefault("tools.llvm_lto", d.Tools.LlvmLto)
	v.SetDefault("tools.opt", d.Tools.Opt)
	v.SetDefault("tools.opt_level", d.Tools.OptLevel)

	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.format", d.Output.Format)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
}

// LoadConfig loads configuration from panic-list.toml in dir, applying
// PANIC_LIST_* environment overrides. A missing file yields the defaults
// (still subject to the environment).
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.NewError(errors.ConfigInvalid,
				fmt.Sprintf("cannot read %s", filepath.Join(dir, FileName)), err, nil)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewError(errors.ConfigInvalid, "cannot decode configuration", err, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewError(errors.ConfigInvalid, err.Error(), err, nil)
	}
	return &cfg, nil
}

// Save writes the configuration to path as TOML. An existing file is not
// overwritten unless force is set.
func (c *Config) Save(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	return c.Encode(f)
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate checks the configuration against its field constraints and
// returns the first violation as a *ConfigError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field:   fieldPath(fe.Namespace()),
			Message: fmt.Sprintf("failed %q constraint (value %v)", constraint(fe), fe.Value()),
		}
	}
	return err
}

// fieldPath turns "Config.Analysis.MaxDepth" into "Analysis.MaxDepth".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
