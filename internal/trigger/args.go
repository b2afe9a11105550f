package trigger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ArgType is the closed set of argument types a trigger can declare.
type ArgType int

const (
	ArgNumber ArgType = iota
	ArgString
	ArgBool
	ArgJSON
	// ArgDynamic collects every remaining raw argument. Final position only.
	ArgDynamic
)

var argTypeNames = [...]string{
	ArgNumber:  "number",
	ArgString:  "string",
	ArgBool:    "bool",
	ArgJSON:    "json",
	ArgDynamic: "dynamic",
}

// String returns the type name used in trigger documentation.
func (t ArgType) String() string {
	if int(t) < 0 || int(t) >= len(argTypeNames) {
		return "unknown"
	}
	return argTypeNames[t]
}

// MarshalText renders the type by name in JSON documents.
func (t ArgType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ArgSpec declares one positional argument of a trigger.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Description string
	Optional    bool
}

// Value is one coerced argument. Exactly one payload field is meaningful,
// selected by Type. Present is false when the invocation supplied fewer
// arguments than were declared.
type Value struct {
	Type    ArgType
	Present bool
	Num     float64
	Str     string
	Bool    bool
	JSON    any
	List    []string
}

// Args is the coerced argument list handed to a handler.
// Accessors return the zero value for out-of-range positions.
type Args []Value

func (a Args) at(i int) (Value, bool) {
	if i < 0 || i >= len(a) {
		return Value{}, false
	}
	return a[i], true
}

// Present reports whether position i was supplied by the invocation.
func (a Args) Present(i int) bool {
	v, ok := a.at(i)
	return ok && v.Present
}

func (a Args) Number(i int) float64 {
	v, _ := a.at(i)
	return v.Num
}

// Int truncates the number at position i.
func (a Args) Int(i int) int {
	return int(a.Number(i))
}

// IntOr returns the number at i truncated to int, or def when the invocation
// did not supply position i.
func (a Args) IntOr(i, def int) int {
	if !a.Present(i) {
		return def
	}
	return a.Int(i)
}

func (a Args) Text(i int) string {
	v, _ := a.at(i)
	return v.Str
}

func (a Args) Bool(i int) bool {
	v, _ := a.at(i)
	return v.Bool
}

// JSON returns the decoded structure at i. Never nil for json arguments.
func (a Args) JSON(i int) any {
	v, _ := a.at(i)
	return v.JSON
}

// Object returns the json argument at i as a map, or an empty map if it
// decoded to something else.
func (a Args) Object(i int) map[string]any {
	if m, ok := a.JSON(i).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func (a Args) List(i int) []string {
	v, _ := a.at(i)
	return v.List
}

// Coerce converts raw positional strings into typed values per specs.
// It never fails: unconvertible or missing values become the type's default.
func Coerce(specs []ArgSpec, raw []string) Args {
	out := make(Args, 0, len(specs))
	for i, spec := range specs {
		present := i < len(raw)
		if spec.Type == ArgDynamic {
			rest := []string{}
			if present {
				rest = append(rest, raw[i:]...)
			}
			out = append(out, Value{Type: ArgDynamic, Present: present, List: rest})
			break
		}
		var s string
		if present {
			s = raw[i]
		}
		out = append(out, coerceValue(spec.Type, s, present))
	}
	return out
}

func coerceValue(t ArgType, raw string, present bool) Value {
	v := Value{Type: t, Present: present}

	switch t {
	case ArgNumber:
		if !present {
			break
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			v.Num = f
		}

	case ArgBool:
		v.Bool = present && (raw == "1" || raw == "true" || raw == "on")

	case ArgJSON:
		v.JSON = map[string]any{}
		if !present || strings.TrimSpace(raw) == "" {
			break
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			v.JSON = decoded
		}

	case ArgString:
		v.Str = raw

	case ArgDynamic:
		v.List = []string{}
	}

	return v
}

// validateSpecs checks declaration-time rules.
func validateSpecs(specs []ArgSpec) error {
	for i, s := range specs {
		if s.Type == ArgDynamic && i != len(specs)-1 {
			return ErrDynamicNotLast
		}
	}
	return nil
}

// allowsLongForm reports whether specs are exactly one string or json arg.
func allowsLongForm(specs []ArgSpec) bool {
	return len(specs) == 1 && (specs[0].Type == ArgString || specs[0].Type == ArgJSON)
}
