package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"rustdiag/internal/items"
)

// CurrentVersion is the only supported config version.
const CurrentVersion = 1

// Config represents the rustdiag configuration stored in .rustdiag/config.json
type Config struct {
	Version   int      `json:"version" mapstructure:"version"`
	Language  string   `json:"language" mapstructure:"language"`
	Rules     []string `json:"rules" mapstructure:"rules"`
	RulesFile string   `json:"rulesFile,omitempty" mapstructure:"rulesFile"`

	Analyzer  AnalyzerConfig            `json:"analyzer" mapstructure:"analyzer"`
	Formatter FormatterConfig           `json:"formatter" mapstructure:"formatter"`
	Rewriters map[string]RewriterConfig `json:"rewriters,omitempty" mapstructure:"rewriters"`
	Output    OutputConfig              `json:"output" mapstructure:"output"`
	Jobs      int                       `json:"jobs" mapstructure:"jobs"`
	Dataset   DatasetConfig             `json:"dataset" mapstructure:"dataset"`
	Logging   LoggingConfig             `json:"logging" mapstructure:"logging"`
}

// AnalyzerConfig describes how the analyzer is invoked. Rules are appended after "--" as
// "-W" + LintPrefix + rule.
type AnalyzerConfig struct {
	Command    string   `json:"command" mapstructure:"command"`
	Args       []string `json:"args" mapstructure:"args"`
	FixArgs    []string `json:"fixArgs" mapstructure:"fixArgs"`
	TimeoutMs  int      `json:"timeoutMs" mapstructure:"timeoutMs"`
	LintPrefix string   `json:"lintPrefix" mapstructure:"lintPrefix"`
}

// FormatterConfig describes the formatter run after a rewriter changed a file.
type FormatterConfig struct {
	Enabled bool     `json:"enabled" mapstructure:"enabled"`
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
}

// RewriterConfig is an external command run on every file with warnings of one rule before
// the fix pass. "{file}" in Args is replaced by the file path. With Stdout set, the
// command's standard output replaces the file.
type RewriterConfig struct {
	Command   string   `json:"command" mapstructure:"command"`
	Args      []string `json:"args" mapstructure:"args"`
	Stdout    bool     `json:"stdout" mapstructure:"stdout"`
	TimeoutMs int      `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// OutputConfig places the generated trees below Root.
type OutputConfig struct {
	Root           string `json:"root" mapstructure:"root"`
	DiagnosticsDir string `json:"diagnosticsDir" mapstructure:"diagnosticsDir"`
	TransformDir   string `json:"transformDir" mapstructure:"transformDir"`
	BeforeSuffix   string `json:"beforeSuffix" mapstructure:"beforeSuffix"`
	AfterSuffix    string `json:"afterSuffix" mapstructure:"afterSuffix"`
	PrefixRules    bool   `json:"prefixRules" mapstructure:"prefixRules"`
}

// DatasetConfig controls the SQLite pair store.
type DatasetConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Path     string `json:"path" mapstructure:"path"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	File       string `json:"file,omitempty" mapstructure:"file"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups"`
}

// DefaultRules is the lint table enabled when no rules are configured.
var DefaultRules = []string{
	"ptr_arg",
	"too_many_arguments",
	"missing_errors_doc",
	"missing_panics_doc",
	"await_holding_lock",
	"await_holding_refcell_ref",
	"assertions_on_constants",
	"large_stack_arrays",
	"match_bool",
	"needless_bitwise_bool",
	"empty_enum",
	"enum_clike_unportable_variant",
	"enum_glob_use",
	"exhaustive_enums",
	"cast_precision_loss",
	"float_arithmetic",
	"float_cmp",
	"float_cmp_const",
	"imprecise_flops",
	"suboptimal_flops",
	"as_conversions",
	"cast_lossless",
	"cast_possible_truncation",
	"cast_possible_wrap",
	"ptr_as_ptr",
	"default_numeric_fallback",
	"checked_conversions",
	"integer_arithmetic",
	"cast_sign_loss",
	"modulo_arithmetic",
	"exhaustive_structs",
	"struct_excessive_bools",
	"unwrap_used",
	"expect_used",
	"expect_fun_call",
	"large_types_passed_by_value",
	"fn_params_excessive_bools",
	"trivially_copy_pass_by_ref",
	"inline_always",
	"inefficient_to_string",
	"dbg_macro",
	"wildcard_imports",
	"self_named_module_files",
	"mod_module_files",
	"disallowed_methods",
	"disallowed_script_idents",
	"disallowed_types",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		Language: string(items.LangRust),
		Rules:    append([]string(nil), DefaultRules...),
		Analyzer: AnalyzerConfig{
			Command: "cargo",
			Args:    []string{"clippy", "--message-format=json"},
			FixArgs: []string{
				"clippy", "--message-format=json",
				"--fix", "--allow-dirty", "--allow-no-vcs", "--broken-code",
			},
			TimeoutMs:  600000,
			LintPrefix: "clippy::",
		},
		Formatter: FormatterConfig{
			Enabled: true,
			Command: "rustfmt",
		},
		Rewriters: map[string]RewriterConfig{},
		Output: OutputConfig{
			Root:           ".",
			DiagnosticsDir: "diagnostics",
			TransformDir:   "transform",
			BeforeSuffix:   ".2.rs",
			AfterSuffix:    ".3.rs",
			PrefixRules:    true,
		},
		Jobs: runtime.GOMAXPROCS(0),
		Dataset: DatasetConfig{
			Enabled:  false,
			Path:     ".rustdiag/dataset.db",
			Compress: true,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "text",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from <root>/.rustdiag/config.json. A missing file yields
// the defaults. RUSTDIAG_* environment variables override file values, with dots in keys
// mapped to underscores (RUSTDIAG_ANALYZER_TIMEOUTMS).
func LoadConfig(root string) (*Config, error) {
	return LoadConfigFromPath(filepath.Join(root, ".rustdiag", "config.json"))
}

// LoadConfigFromPath loads configuration from an explicit file path.
func LoadConfigFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("RUSTDIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if cfg.Rewriters == nil {
		cfg.Rewriters = map[string]RewriterConfig{}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("language", d.Language)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("rulesFile", d.RulesFile)

	v.SetDefault("analyzer.command", d.Analyzer.Command)
	v.SetDefault("analyzer.args", d.Analyzer.Args)
	v.SetDefault("analyzer.fixArgs", d.Analyzer.FixArgs)
	v.SetDefault("analyzer.timeoutMs", d.Analyzer.TimeoutMs)
	v.SetDefault("analyzer.lintPrefix", d.Analyzer.LintPrefix)

	v.SetDefault("formatter.enabled", d.Formatter.Enabled)
	v.SetDefault("formatter.command", d.Formatter.Command)
	v.SetDefault("formatter.args", d.Formatter.Args)

	v.SetDefault("output.root", d.Output.Root)
	v.SetDefault("output.diagnosticsDir", d.Output.DiagnosticsDir)
	v.SetDefault("output.transformDir", d.Output.TransformDir)
	v.SetDefault("output.beforeSuffix", d.Output.BeforeSuffix)
	v.SetDefault("output.afterSuffix", d.Output.AfterSuffix)
	v.SetDefault("output.prefixRules", d.Output.PrefixRules)

	v.SetDefault("jobs", d.Jobs)

	v.SetDefault("dataset.enabled", d.Dataset.Enabled)
	v.SetDefault("dataset.path", d.Dataset.Path)
	v.SetDefault("dataset.compress", d.Dataset.Compress)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// Save writes the configuration to <root>/.rustdiag/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".rustdiag")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if len(items.ItemKinds(items.Language(c.Language))) == 0 {
		return &ConfigError{Field: "language", Message: fmt.Sprintf("unsupported language %q", c.Language)}
	}
	for _, r := range c.Rules {
		if err := validateRuleName(r); err != nil {
			return &ConfigError{Field: "rules", Message: err.Error()}
		}
	}
	if c.Analyzer.Command == "" {
		return &ConfigError{Field: "analyzer.command", Message: "must not be empty"}
	}
	if c.Analyzer.TimeoutMs < 0 {
		return &ConfigError{Field: "analyzer.timeoutMs", Message: "must not be negative"}
	}
	if c.Formatter.Enabled && c.Formatter.Command == "" {
		return &ConfigError{Field: "formatter.command", Message: "must not be empty when the formatter is enabled"}
	}
	for rule, rw := range c.Rewriters {
		if rw.Command == "" {
			return &ConfigError{Field: "rewriters." + rule, Message: "command must not be empty"}
		}
	}
	if c.Output.BeforeSuffix == "" || c.Output.AfterSuffix == "" {
		return &ConfigError{Field: "output", Message: "pair suffixes must not be empty"}
	}
	if c.Output.BeforeSuffix == c.Output.AfterSuffix {
		return &ConfigError{Field: "output", Message: "beforeSuffix and afterSuffix must differ"}
	}
	if c.Jobs < 0 {
		return &ConfigError{Field: "jobs", Message: "must not be negative"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
