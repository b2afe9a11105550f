package trigger

import (
	"reflect"
	"testing"
)

func TestCoerce_Number(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    float64
		present bool
	}{
		{name: "integer", raw: []string{"42"}, want: 42, present: true},
		{name: "decimal", raw: []string{"-1.5"}, want: -1.5, present: true},
		{name: "surrounding space", raw: []string{" 7 "}, want: 7, present: true},
		{name: "garbage defaults to zero", raw: []string{"abc"}, want: 0, present: true},
		{name: "empty defaults to zero", raw: []string{""}, want: 0, present: true},
		{name: "NaN defaults to zero", raw: []string{"NaN"}, want: 0, present: true},
		{name: "absent defaults to zero", raw: nil, want: 0, present: false},
	}

	specs := []ArgSpec{{Name: "n", Type: ArgNumber}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := Coerce(specs, tt.raw)
			if len(args) != 1 {
				t.Fatalf("len(args) = %d, want 1", len(args))
			}
			if args.Number(0) != tt.want {
				t.Errorf("Number(0) = %v, want %v", args.Number(0), tt.want)
			}
			if args.Present(0) != tt.present {
				t.Errorf("Present(0) = %v, want %v", args.Present(0), tt.present)
			}
		})
	}
}

func TestCoerce_Bool(t *testing.T) {
	tests := []struct {
		raw  []string
		want bool
	}{
		{raw: []string{"1"}, want: true},
		{raw: []string{"true"}, want: true},
		{raw: []string{"on"}, want: true},
		{raw: []string{"TRUE"}, want: false},
		{raw: []string{"On"}, want: false},
		{raw: []string{"0"}, want: false},
		{raw: []string{"off"}, want: false},
		{raw: []string{"yes"}, want: false},
		{raw: nil, want: false},
	}

	specs := []ArgSpec{{Name: "b", Type: ArgBool}}
	for _, tt := range tests {
		args := Coerce(specs, tt.raw)
		if args.Bool(0) != tt.want {
			t.Errorf("Coerce(bool, %q) = %v, want %v", tt.raw, args.Bool(0), tt.want)
		}
	}
}

func TestCoerce_JSON(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want any
	}{
		{name: "object", raw: []string{`{"a":1}`}, want: map[string]any{"a": float64(1)}},
		{name: "array", raw: []string{`[1,2]`}, want: []any{float64(1), float64(2)}},
		{name: "empty string", raw: []string{""}, want: map[string]any{}},
		{name: "absent", raw: nil, want: map[string]any{}},
		{name: "invalid", raw: []string{`{broken`}, want: map[string]any{}},
	}

	specs := []ArgSpec{{Name: "j", Type: ArgJSON}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := Coerce(specs, tt.raw)
			if !reflect.DeepEqual(args.JSON(0), tt.want) {
				t.Errorf("JSON(0) = %#v, want %#v", args.JSON(0), tt.want)
			}
		})
	}
}

func TestCoerce_StringAndDynamic(t *testing.T) {
	specs := []ArgSpec{
		{Name: "address", Type: ArgString},
		{Name: "types", Type: ArgString},
		{Name: "values", Type: ArgDynamic},
	}

	args := Coerce(specs, []string{"/cue/1", "if", "3", "0.5"})
	if args.Text(0) != "/cue/1" || args.Text(1) != "if" {
		t.Errorf("strings = %q, %q", args.Text(0), args.Text(1))
	}
	if got := args.List(2); !reflect.DeepEqual(got, []string{"3", "0.5"}) {
		t.Errorf("List(2) = %q, want [3 0.5]", got)
	}

	args = Coerce(specs, []string{" raw "})
	if args.Text(0) != " raw " {
		t.Errorf("string not passed through raw: %q", args.Text(0))
	}
	if args.Text(1) != "" {
		t.Errorf("absent string = %q, want empty", args.Text(1))
	}
	if got := args.List(2); got == nil || len(got) != 0 {
		t.Errorf("absent dynamic = %#v, want empty list", got)
	}
}

func TestCoerce_ExtraArgumentsIgnored(t *testing.T) {
	args := Coerce([]ArgSpec{{Name: "n", Type: ArgNumber}}, []string{"1", "2", "3"})
	if len(args) != 1 {
		t.Errorf("len(args) = %d, want 1", len(args))
	}
}

func TestArgs_OutOfRange(t *testing.T) {
	var args Args
	if args.Number(3) != 0 || args.Text(3) != "" || args.Bool(3) || args.Present(3) {
		t.Error("out of range accessors should return zero values")
	}
	if args.IntOr(0, 127) != 127 {
		t.Errorf("IntOr() = %d, want 127", args.IntOr(0, 127))
	}
	if len(args.Object(0)) != 0 {
		t.Error("Object() on missing position should be empty")
	}
}

func TestArgType_String(t *testing.T) {
	if ArgDynamic.String() != "dynamic" || ArgType(99).String() != "unknown" {
		t.Errorf("ArgType.String() = %q/%q", ArgDynamic.String(), ArgType(99).String())
	}
}
