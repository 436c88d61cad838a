// Package env is a process-wide registry of the environment variables the
// bridge reads. Registering a variable records its metadata (name, default,
// description, type, component) and returns a typed accessor, so the full
// configuration surface can be printed with `foundry-a2a-bridge env`.
package env

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// VarType identifies the data type of an environment variable.
type VarType int

const (
	TypeString VarType = iota
	TypeBool
	TypeDuration
)

// String returns the human-readable name of a VarType.
func (v VarType) String() string {
	switch v {
	case TypeString:
		return "String"
	case TypeBool:
		return "Boolean"
	case TypeDuration:
		return "Duration"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes VarType as its string representation.
func (v VarType) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// Component identifies which part of the bridge consumes the variable.
type Component string

const (
	ComponentServer    Component = "server"
	ComponentFoundry   Component = "foundry"
	ComponentTelemetry Component = "telemetry"
	ComponentTesting   Component = "testing"
)

// Var holds the metadata for a single registered environment variable.
type Var struct {
	Name         string    `json:"name"`
	DefaultValue string    `json:"default"`
	Description  string    `json:"description"`
	Type         VarType   `json:"type"`
	Component    Component `json:"component"`
	// Required marks variables the bridge refuses to start without.
	Required bool `json:"required"`
}

var (
	allVars = make(map[string]Var)
	mu      sync.Mutex
)

func register(v Var) {
	mu.Lock()
	defer mu.Unlock()
	allVars[v.Name] = v
}

// VarDescriptions returns all registered variables sorted by name.
func VarDescriptions() []Var {
	mu.Lock()
	defer mu.Unlock()

	out := make([]Var, 0, len(allVars))
	for _, v := range allVars {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Var) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// StringVar is a registered environment variable that holds a string value.
type StringVar struct {
	v Var
}

// RegisterStringVar registers a string environment variable and returns a typed accessor.
func RegisterStringVar(name, defaultValue, description string, component Component) StringVar {
	v := Var{
		Name:         name,
		DefaultValue: defaultValue,
		Description:  description,
		Type:         TypeString,
		Component:    component,
	}
	register(v)
	return StringVar{v: v}
}

// RegisterRequiredStringVar is RegisterStringVar for variables without a usable default.
func RegisterRequiredStringVar(name, description string, component Component) StringVar {
	v := Var{
		Name:        name,
		Description: description,
		Type:        TypeString,
		Component:   component,
		Required:    true,
	}
	register(v)
	return StringVar{v: v}
}

// Get returns the current value of the environment variable, or the default.
// Surrounding whitespace is trimmed.
func (s StringVar) Get() string {
	if val, ok := os.LookupEnv(s.v.Name); ok {
		return strings.TrimSpace(val)
	}
	return s.v.DefaultValue
}

// Name returns the environment variable name.
func (s StringVar) Name() string { return s.v.Name }

// Required reports whether the variable was registered as required.
func (s StringVar) Required() bool { return s.v.Required }

// DefaultValue returns the default value.
func (s StringVar) DefaultValue() string { return s.v.DefaultValue }

// BoolVar is a registered environment variable that holds a boolean value.
type BoolVar struct {
	v            Var
	defaultValue bool
}

// RegisterBoolVar registers a boolean environment variable and returns a typed accessor.
func RegisterBoolVar(name string, defaultValue bool, description string, component Component) BoolVar {
	v := Var{
		Name:         name,
		DefaultValue: strconv.FormatBool(defaultValue),
		Description:  description,
		Type:         TypeBool,
		Component:    component,
	}
	register(v)
	return BoolVar{v: v, defaultValue: defaultValue}
}

// Get returns the current value of the environment variable, or the default.
// Values are matched case-insensitively, so "True" and "TRUE" both enable a flag.
func (b BoolVar) Get() bool {
	if val, ok := os.LookupEnv(b.v.Name); ok {
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err == nil {
			return parsed
		}
	}
	return b.defaultValue
}

// Name returns the environment variable name.
func (b BoolVar) Name() string { return b.v.Name }

// DurationVar is a registered environment variable that holds a time.Duration value.
type DurationVar struct {
	v            Var
	defaultValue time.Duration
}

// RegisterDurationVar registers a duration environment variable and returns a typed accessor.
func RegisterDurationVar(name string, defaultValue time.Duration, description string, component Component) DurationVar {
	v := Var{
		Name:         name,
		DefaultValue: defaultValue.String(),
		Description:  description,
		Type:         TypeDuration,
		Component:    component,
	}
	register(v)
	return DurationVar{v: v, defaultValue: defaultValue}
}

// Get returns the current value of the environment variable, or the default.
func (d DurationVar) Get() time.Duration {
	if val, ok := os.LookupEnv(d.v.Name); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(val))
		if err == nil {
			return parsed
		}
	}
	return d.defaultValue
}

// Name returns the environment variable name.
func (d DurationVar) Name() string { return d.v.Name }

// ExportMarkdown generates a markdown document listing all registered variables.
func ExportMarkdown(component string) string {
	var sb strings.Builder
	sb.WriteString("# A2A Bridge Environment Variables\n\n")

	grouped := make(map[Component][]Var)
	for _, v := range filter(component) {
		grouped[v.Component] = append(grouped[v.Component], v)
	}

	components := make([]Component, 0, len(grouped))
	for c := range grouped {
		components = append(components, c)
	}
	slices.Sort(components)

	for _, comp := range components {
		fmt.Fprintf(&sb, "## %s\n\n", comp)
		sb.WriteString("| Variable | Type | Default | Description |\n")
		sb.WriteString("|----------|------|---------|-------------|\n")
		for _, v := range grouped[comp] {
			defaultVal := v.DefaultValue
			if defaultVal == "" {
				defaultVal = "(none)"
			}
			required := ""
			if v.Required {
				required = " **(required)**"
			}
			fmt.Fprintf(&sb, "| `%s` | %s | `%s` | %s%s |\n",
				v.Name, v.Type, defaultVal, v.Description, required)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ExportJSON generates a JSON array of all registered variables.
func ExportJSON(component string) string {
	b, err := json.MarshalIndent(filter(component), "", "  ")
	if err != nil {
		return "[]\n"
	}
	return string(b) + "\n"
}

func filter(component string) []Var {
	vars := VarDescriptions()
	out := make([]Var, 0, len(vars))
	for _, v := range vars {
		if component != "" && component != "all" && string(v.Component) != component {
			continue
		}
		out = append(out, v)
	}
	return out
}
