package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as it appears in the config file.
	Key     string
	Type    OptionType
	Default string
	// Description is shown by "bte config schema".
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar, if set, overrides the configured value.
	EnvVar string
}

// ConfigSchema declares the known options. It drives validation, typed
// lookups, environment overrides and help output.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds an option. The last registration of a key wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := &opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds several options.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option registered for key in section ("" for global),
// or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys may appear
// in any section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.byKey[key] != nil
}

// Options returns the options of section in registration order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of the registered command sections.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global key: its environment
// variable, then the config value, then the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveIn(c, "", key)
}

// ResolveIn returns the effective value of key for a command section: the
// environment variable, the section value, the global value, then the
// section or global default.
func (s *ConfigSchema) ResolveIn(c *Config, section, key string) string {
	global := s.byKey[key]
	local := s.Lookup(section, key)
	for _, opt := range []*ConfigOption{local, global} {
		if opt == nil || opt.EnvVar == "" {
			continue
		}
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if section != "" {
			if v, ok := c.Commands[section][key]; ok {
				return v
			}
		}
		if v, ok := c.Global[key]; ok {
			return v
		}
	}
	if local != nil {
		return local.Default
	}
	if global != nil {
		return global.Default
	}
	return ""
}

// ResolveBool is ResolveIn parsed as a bool; invalid values are false.
func (s *ConfigSchema) ResolveBool(c *Config, section, key string) bool {
	b, _ := parseBool(s.ResolveIn(c, section, key))
	return b
}

// ResolveInt is ResolveIn parsed as an int; invalid values are 0.
func (s *ConfigSchema) ResolveInt(c *Config, section, key string) int {
	i, _ := strconv.Atoi(s.ResolveIn(c, section, key))
	return i
}

// ResolveDuration is ResolveIn parsed as a duration; invalid values are 0.
func (s *ConfigSchema) ResolveDuration(c *Config, section, key string) time.Duration {
	d, _ := time.ParseDuration(s.ResolveIn(c, section, key))
	return d
}

// ValidateConfig returns the unknown options and type mismatches of c,
// sorted.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp renders every option, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.Options(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-24s %s", o.Key, o.Description)
	var parts []string
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema declares every bte option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "BTE_LOG_LEVEL"},
		{Key: "log.file", Type: TypeString, Description: "Log file path (JSON output); stderr if unset", EnvVar: "BTE_LOG_FILE"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log files kept"},
		{Key: "tick.interval", Type: TypeDuration, Default: "100ms", Description: "Time between root ticks", EnvVar: "BTE_TICK_INTERVAL"},
		{Key: "tick.max", Type: TypeInt, Default: "0", Description: "Stop after this many ticks; 0 is unbounded"},
		{Key: "tree.format", Type: TypeString, Default: "auto", Description: "Tree description format: auto, xml, yaml"},
		{Key: "trace", Type: TypeBool, Default: "false", Description: "Print node statuses after every tick"},
		{Key: "color", Type: TypeString, Default: "auto", Description: "Color mode: auto, always, never", EnvVar: "BTE_COLOR"},
		{Key: "expr.cache-size", Type: TypeInt, Default: "1000", Description: "Compiled expression cache entries"},
		{Key: "telemetry.exporter", Type: TypeString, Default: "none", Description: "Telemetry exporter: none, stdout", EnvVar: "BTE_TELEMETRY_EXPORTER"},

		{Key: "tick.interval", Section: "run", Type: TypeDuration, Default: "100ms", Description: "Time between root ticks for run"},
		{Key: "tick.max", Section: "run", Type: TypeInt, Default: "0", Description: "Tick limit for run"},
		{Key: "trace", Section: "run", Type: TypeBool, Default: "false", Description: "Trace node statuses for run"},
	})
	return s
}
