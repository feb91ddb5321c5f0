// Package config implements the settings descriptor table: a declarative
// list of every `:set`-able option, with parsing, validation, and a
// typed setter, plus yaml persistence. Grounded on
// original_source/src/command_line/settings/{descriptor,definitions,
// registry}.rs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vtedit/core/pkg/apperr"
	"github.com/vtedit/core/pkg/layer"
	"gopkg.in/yaml.v3"
)

// ValueKind tags the variant carried by a Value, mirroring the
// original's SettingValue enum.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindEnum
	KindColor
)

// Value is a parsed, validated setting value. Setters receive this,
// never a raw string.
type Value struct {
	kind  ValueKind
	b     bool
	i     int
	f     float64
	s     string // canonical enum variant
	color layer.Color
}

func BoolValue(b bool) Value         { return Value{kind: KindBool, b: b} }
func IntValue(i int) Value           { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value     { return Value{kind: KindFloat, f: f} }
func EnumValue(s string) Value       { return Value{kind: KindEnum, s: s} }
func ColorValue(c layer.Color) Value { return Value{kind: KindColor, color: c} }

func (v Value) Kind() ValueKind    { return v.kind }
func (v Value) Bool() bool         { return v.b }
func (v Value) Int() int           { return v.i }
func (v Value) Float() float64     { return v.f }
func (v Value) Enum() string       { return v.s }
func (v Value) Color() layer.Color { return v.color }

// Type describes how to parse and validate a raw string into a Value,
// mirroring the original's SettingType enum.
type Type struct {
	Kind ValueKind

	// Integer / Float bounds; a nil pointer means "unbounded" as in the
	// original's Option<usize>/Option<f64>.
	IntMin, IntMax     *int
	FloatMin, FloatMax *float64

	// Enum variants, canonical case.
	Variants []string
}

func Bool() Type { return Type{Kind: KindBool} }
func Int(min, max *int) Type { return Type{Kind: KindInt, IntMin: min, IntMax: max} }
func Float(min, max *float64) Type { return Type{Kind: KindFloat, FloatMin: min, FloatMax: max} }
func Enum(variants ...string) Type { return Type{Kind: KindEnum, Variants: variants} }
func Color() Type { return Type{Kind: KindColor} }

// ParseValue parses and validates raw against t, the Go counterpart of
// SettingsRegistry::parse_value.
func ParseValue(t Type, raw string) (Value, error) {
	switch t.Kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "true", "1", "on", "yes":
			return BoolValue(true), nil
		case "false", "0", "off", "no":
			return BoolValue(false), nil
		}
		return Value{}, apperr.New(apperr.Parse, "SETTING_PARSE_ERROR", fmt.Sprintf("invalid boolean value: %s", raw))
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, apperr.New(apperr.Parse, "SETTING_PARSE_ERROR", fmt.Sprintf("invalid integer value: %s", raw))
		}
		if t.IntMin != nil && n < *t.IntMin {
			return Value{}, apperr.New(apperr.Settings, "SETTING_VALIDATION_ERROR", fmt.Sprintf("value %d is below minimum %d", n, *t.IntMin))
		}
		if t.IntMax != nil && n > *t.IntMax {
			return Value{}, apperr.New(apperr.Settings, "SETTING_VALIDATION_ERROR", fmt.Sprintf("value %d is above maximum %d", n, *t.IntMax))
		}
		return IntValue(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, apperr.New(apperr.Parse, "SETTING_PARSE_ERROR", fmt.Sprintf("invalid float value: %s", raw))
		}
		if t.FloatMin != nil && f < *t.FloatMin {
			return Value{}, apperr.New(apperr.Settings, "SETTING_VALIDATION_ERROR", fmt.Sprintf("value %g is below minimum %g", f, *t.FloatMin))
		}
		if t.FloatMax != nil && f > *t.FloatMax {
			return Value{}, apperr.New(apperr.Settings, "SETTING_VALIDATION_ERROR", fmt.Sprintf("value %g is above maximum %g", f, *t.FloatMax))
		}
		return FloatValue(f), nil
	case KindEnum:
		lower := strings.ToLower(raw)
		for _, variant := range t.Variants {
			if strings.ToLower(variant) == lower {
				return EnumValue(variant), nil
			}
		}
		return Value{}, apperr.New(apperr.Parse, "SETTING_PARSE_ERROR", fmt.Sprintf("invalid value %q, valid values: %s", raw, strings.Join(t.Variants, ", ")))
	case KindColor:
		c, err := parseColor(raw)
		if err != nil {
			return Value{}, apperr.New(apperr.Parse, "SETTING_PARSE_ERROR", err.Error())
		}
		return ColorValue(c), nil
	}
	return Value{}, apperr.New(apperr.Internal, "SETTING_BAD_TYPE", "unknown setting type")
}

func parseColor(raw string) (layer.Color, error) {
	if named, ok := namedColors[strings.ToLower(raw)]; ok {
		return named, nil
	}
	if strings.HasPrefix(raw, "#") && len(raw) == 7 {
		var r, g, b int
		if _, err := fmt.Sscanf(raw, "#%02x%02x%02x", &r, &g, &b); err == nil {
			return layer.Color{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
		}
	}
	return layer.Color{}, fmt.Errorf("invalid color: %s", raw)
}

var namedColors = map[string]layer.Color{
	"black":   {R: 0, G: 0, B: 0},
	"red":     {R: 205, G: 0, B: 0},
	"green":   {R: 0, G: 205, B: 0},
	"yellow":  {R: 205, G: 205, B: 0},
	"blue":    {R: 0, G: 0, B: 238},
	"magenta": {R: 205, G: 0, B: 205},
	"cyan":    {R: 0, G: 205, B: 205},
	"white":   {R: 229, G: 229, B: 229},
}

// Setter mutates a Settings value in place with a parsed, validated
// Value. Function values rather than an interface, mirroring the
// original's `fn(&mut T, SettingValue) -> Result<...>` static dispatch.
type Setter func(s *Settings, v Value) error

// Descriptor is one declarative `:set`-able option.
type Descriptor struct {
	Name            string
	Aliases         []string
	Type            Type
	Set             Setter
	NeedsFullRedraw bool
}

// Settings holds every option's current value. Grounded on
// original_source/src/state UserSettings (flattened here, since Go has
// no equivalent of Rust's dotted-path nested-struct setting names —
// "command_line.width_ratio" is still the descriptor Name, it just
// targets a flat field here instead of settings.command_line_window).
type Settings struct {
	ExpandTabs bool   `yaml:"expand_tabs"`
	TabWidth   int    `yaml:"tab_width"`
	LineEnding string `yaml:"line_ending"`
	Theme      string `yaml:"theme"`

	BorderStyle string `yaml:"border_style"`

	CommandLineWidthRatio float64 `yaml:"command_line_width_ratio"`
	CommandLineMinWidth   int     `yaml:"command_line_min_width"`
	CommandLineHeight     int     `yaml:"command_line_height"`
	CommandLineBorder     bool    `yaml:"command_line_border"`
	CommandLineReverse    bool    `yaml:"command_line_reverse"`

	EditorBackground layer.Color `yaml:"editor_background"`
	EditorForeground layer.Color `yaml:"editor_foreground"`

	StatusLineShowFilename bool `yaml:"status_line_show_filename"`
	StatusLineReverse      bool `yaml:"status_line_reverse"`
}

// Defaults mirrors the original's Default impl for UserSettings.
func Defaults() *Settings {
	return &Settings{
		ExpandTabs:            false,
		TabWidth:              8,
		LineEnding:            "lf",
		Theme:                 "dark",
		BorderStyle:           "unicode",
		CommandLineWidthRatio: 0.6,
		CommandLineMinWidth:   20,
		CommandLineHeight:     1,
		CommandLineBorder:     true,
		EditorForeground:      layer.Color{R: 229, G: 229, B: 229},
	}
}

func intPtr(n int) *int { return &n }

// Registry holds the declarative descriptor table and resolves
// `:set name=value` against it, per registry.rs's execute_setting.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds the registry covering every option spec.md §6
// lists: expandtabs/et, tabwidth/tw, line_ending/ff, theme/colorscheme,
// editor.background, editor.foreground, borderstyle,
// command_line.*, status_line.*.
func NewRegistry() *Registry {
	r := &Registry{}
	r.register(Descriptor{
		Name: "expandtabs", Aliases: []string{"et"}, Type: Bool(),
		Set: func(s *Settings, v Value) error { s.ExpandTabs = v.Bool(); return nil },
	})
	r.register(Descriptor{
		Name: "tabwidth", Aliases: []string{"tw"}, Type: Int(intPtr(1), nil), NeedsFullRedraw: true,
		Set: func(s *Settings, v Value) error { s.TabWidth = v.Int(); return nil },
	})
	r.register(Descriptor{
		Name: "line_ending", Aliases: []string{"ff"}, Type: Enum("lf", "crlf", "unix", "dos", "windows"),
		Set: func(s *Settings, v Value) error { s.LineEnding = v.Enum(); return nil },
	})
	r.register(Descriptor{
		Name: "theme", Aliases: []string{"colorscheme"}, Type: Enum("light", "dark", "gruvbox", "nordic"), NeedsFullRedraw: true,
		Set: func(s *Settings, v Value) error { s.Theme = v.Enum(); return nil },
	})
	r.register(Descriptor{
		Name: "borderstyle", Aliases: []string{"bs"}, Type: Enum("unicode", "ascii", "none"), NeedsFullRedraw: true,
		Set: func(s *Settings, v Value) error { s.BorderStyle = v.Enum(); return nil },
	})
	r.register(Descriptor{
		Name: "editor.background", Aliases: []string{"edbg", "bg"}, Type: Color(), NeedsFullRedraw: true,
		Set: func(s *Settings, v Value) error { s.EditorBackground = v.Color(); return nil },
	})
	r.register(Descriptor{
		Name: "editor.foreground", Aliases: []string{"edfg", "fg"}, Type: Color(), NeedsFullRedraw: true,
		Set: func(s *Settings, v Value) error { s.EditorForeground = v.Color(); return nil },
	})
	r.register(Descriptor{
		Name: "command_line.width_ratio", Aliases: []string{"cmdwidth"}, Type: Float(nil, nil),
		Set: func(s *Settings, v Value) error { s.CommandLineWidthRatio = v.Float(); return nil },
	})
	r.register(Descriptor{
		Name: "command_line.min_width", Aliases: []string{"cmdminwidth"}, Type: Int(intPtr(0), nil),
		Set: func(s *Settings, v Value) error { s.CommandLineMinWidth = v.Int(); return nil },
	})
	r.register(Descriptor{
		Name: "command_line.height", Aliases: []string{"cmdheight"}, Type: Int(intPtr(1), nil),
		Set: func(s *Settings, v Value) error { s.CommandLineHeight = v.Int(); return nil },
	})
	r.register(Descriptor{
		Name: "command_line.border", Aliases: []string{"cmdborder"}, Type: Bool(),
		Set: func(s *Settings, v Value) error { s.CommandLineBorder = v.Bool(); return nil },
	})
	r.register(Descriptor{
		Name: "command_line.reverse_video", Aliases: []string{"cmdreverse"}, Type: Bool(),
		Set: func(s *Settings, v Value) error { s.CommandLineReverse = v.Bool(); return nil },
	})
	r.register(Descriptor{
		Name: "status_line.show_filename", Aliases: []string{"sfn"}, Type: Bool(),
		Set: func(s *Settings, v Value) error { s.StatusLineShowFilename = v.Bool(); return nil },
	})
	r.register(Descriptor{
		Name: "status_line.reverse_video", Aliases: []string{"slreverse"}, Type: Bool(),
		Set: func(s *Settings, v Value) error { s.StatusLineReverse = v.Bool(); return nil },
	})
	return r
}

func (r *Registry) register(d Descriptor) { r.descriptors = append(r.descriptors, d) }

// resolve matches name exactly against every descriptor's canonical name
// and aliases, then as a prefix of canonical names only (aliases are not
// prefix-matched) — the same exact-then-unambiguous-prefix rule
// pkg/editor/command.Registry.Match applies to command names; an
// empty/ambiguous prefix match is reported rather than silently picking
// one.
func (r *Registry) resolve(name string) (*Descriptor, error) {
	lower := strings.ToLower(name)
	for i := range r.descriptors {
		d := &r.descriptors[i]
		if d.Name == lower {
			return d, nil
		}
		for _, a := range d.Aliases {
			if a == lower {
				return d, nil
			}
		}
	}
	var matches []*Descriptor
	for i := range r.descriptors {
		d := &r.descriptors[i]
		if strings.HasPrefix(d.Name, lower) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, apperr.New(apperr.Settings, "UNKNOWN_SETTING", fmt.Sprintf("unknown option: %s", name))
	default:
		var names []string
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return nil, apperr.New(apperr.Settings, "AMBIGUOUS_SETTING", fmt.Sprintf("ambiguous option %q: matches %s", name, strings.Join(names, ", ")))
	}
}

// Execute resolves name, parses raw against its Type, and applies its
// Setter to settings. Reports whether the change requires a full
// screen redraw.
func (r *Registry) Execute(settings *Settings, name, raw string) (needsFullRedraw bool, err error) {
	d, err := r.resolve(name)
	if err != nil {
		return false, err
	}
	v, err := ParseValue(d.Type, raw)
	if err != nil {
		return false, err
	}
	if err := d.Set(settings, v); err != nil {
		return false, apperr.Wrap(apperr.Settings, "SETTING_SET_ERROR", err)
	}
	return d.NeedsFullRedraw, nil
}

// Load reads settings from a yaml file, falling back to Defaults if the
// file does not exist.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, "CONFIG_READ_ERROR", err)
	}
	s := Defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, apperr.Wrap(apperr.Parse, "CONFIG_PARSE_ERROR", err)
	}
	return s, nil
}

// Save writes settings to path as yaml.
func Save(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "CONFIG_MARSHAL_ERROR", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.Io, "CONFIG_WRITE_ERROR", err)
	}
	return nil
}
