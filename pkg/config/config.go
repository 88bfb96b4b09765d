package config

import (
	"fmt"
	"os"
	"strings"

	"modernc.org/libqbe"

	"github.com/xplshn/splc/pkg/cli"
)

type Feature int

const (
	FeatFoldNegation Feature = iota
	FeatLeafProc
	FeatBoundsCheck
	FeatCharLiterals
	FeatHexLiterals
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnUnused
	WarnEmptyBody
	WarnExtra
	WarnCount
)

// Target selects the back end.
type Target string

const (
	TargetECO32 Target = "eco32"
	TargetQBE   Target = "qbe"
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Target     Target
	TargetArch string
	QbeTarget  string
	WordSize   int
	WordType   string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Target:     TargetECO32,
		WordSize:   4,
		WordType:   "w",
	}

	features := map[Feature]Info{
		FeatFoldNegation: {"fold-negation", true, "Fold a negated integer literal into a negative literal."},
		FeatLeafProc:     {"leaf-proc", false, "Omit the frame pointer and return address of procedures that make no calls."},
		FeatBoundsCheck:  {"bounds-check", true, "Check array indices against the array length at run time."},
		FeatCharLiterals: {"char-lit", true, "Accept character literals like 'a' and '\\n'."},
		FeatHexLiterals:  {"hex-lit", true, "Accept hexadecimal literals like 0x1F."},
	}

	warnings := map[Warning]Info{
		WarnShadow:    {"shadow", true, "Warn when a parameter or local variable hides a global variable."},
		WarnUnused:    {"unused", false, "Warn about parameters and local variables that are never used."},
		WarnEmptyBody: {"empty-body", false, "Warn about if and while statements with an empty body."},
		WarnExtra:     {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetBackend selects the back end by name.
func (c *Config) SetBackend(name string) error {
	switch t := Target(name); t {
	case TargetECO32, TargetQBE:
		c.Target = t
		return nil
	default:
		return fmt.Errorf("unsupported target '%s'. Supported: 'eco32', 'qbe'", name)
	}
}

// SetTarget configures the QBE back end for a specific architecture and QBE target.
// The ECO32 back end always uses 4-byte words and ignores it.
func (c *Config) SetTarget(goos, goarch, qbeTarget string, verbose bool) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		if verbose {
			fmt.Fprintf(os.Stderr, "splc: info: no QBE target specified, defaulting to host target '%s'\n", c.QbeTarget)
		}
	} else {
		c.QbeTarget = qbeTarget
	}

	c.TargetArch = goarch
	if c.Target != TargetQBE {
		c.WordSize, c.WordType = 4, "w"
		return
	}

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		fmt.Fprintf(os.Stderr, "splc: warning: unrecognized or unsupported QBE target '%s'.\n", c.QbeTarget)
		fmt.Fprintf(os.Stderr, "splc: warning: defaulting to 64-bit properties. Compilation may fail.\n")
		c.WordSize, c.WordType = 8, "l"
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// Fingerprint renders every option that influences the generated code, in a fixed order.
func (c *Config) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(string(c.Target))
	sb.WriteString(";" + c.QbeTarget)
	for i := Feature(0); i < FeatCount; i++ {
		fmt.Fprintf(&sb, ";%s=%t", c.Features[i].Name, c.Features[i].Enabled)
	}
	return sb.String()
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -W/-F flags; -Wall and -Wno-all go first so specific flags can override them.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
}

// ProcessFlagString applies a whitespace separated list of -W/-F flags.
func (c *Config) ProcessFlagString(flagStr string) {
	for _, flag := range strings.Fields(flagStr) {
		c.applyFlag(flag)
	}
}

// SetupFlagGroups registers a -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// pair for every warning and feature. The returned entries are indexed by
// Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
		*warningFlags[i].Enabled = info.Enabled
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
		*featureFlags[i].Enabled = info.Enabled
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available feature flags:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed -W/-F entries back into the configuration.
// A -Wno-/-Fno- flag wins over a default that is on.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil {
			c.SetWarning(Warning(i), *entry.Enabled)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil {
			c.SetFeature(Feature(i), *entry.Enabled)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
