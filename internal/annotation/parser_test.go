package annotation

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Invocation
	}{
		{
			name: "simple short form",
			text: "t[a,b,c]",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"a", "b", "c"}}},
		},
		{
			name: "quoted comma preserved",
			text: "t['a,b', c]",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"a,b", "c"}}},
		},
		{
			name: "escape sequences decoded inside quotes",
			text: "t['line1\\nline2']",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"line1\nline2"}}},
		},
		{
			name: "tab and carriage return escapes",
			text: "t[\"a\\tb\\rc\"]",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"a\tb\rc"}}},
		},
		{
			name: "long form before short form",
			text: "[log]hello[/log] note[5]",
			want: []Invocation{
				{Tag: "log", Form: FormLong, Args: []string{"hello"}},
				{Tag: "note", Form: FormShort, Args: []string{"5"}},
			},
		},
		{
			name: "long form emitted first even when it appears last",
			text: "note[5] [log]x[/log]",
			want: []Invocation{
				{Tag: "log", Form: FormLong, Args: []string{"x"}},
				{Tag: "note", Form: FormShort, Args: []string{"5"}},
			},
		},
		{
			name: "long form case-insensitive close",
			text: "[LOG]x[/log]",
			want: []Invocation{{Tag: "LOG", Form: FormLong, Args: []string{"x"}}},
		},
		{
			name: "long form content untrimmed and multi-line",
			text: "[vmix]\n {\"a\": [1,2]}, 'q' \n[/vmix]",
			want: []Invocation{{Tag: "vmix", Form: FormLong, Args: []string{"\n {\"a\": [1,2]}, 'q' \n"}}},
		},
		{
			name: "long form content is never read as short form",
			text: "[log]cc[1,2][/log]",
			want: []Invocation{{Tag: "log", Form: FormLong, Args: []string{"cc[1,2]"}}},
		},
		{
			name: "zero argument form",
			text: "midipanic[]",
			want: []Invocation{{Tag: "midipanic", Form: FormShort, Args: []string{}}},
		},
		{
			name: "unquoted arguments trimmed",
			text: "cc[  1 ,  2  ]",
			want: []Invocation{{Tag: "cc", Form: FormShort, Args: []string{"1", "2"}}},
		},
		{
			name: "quoted whitespace preserved",
			text: "say[ '  spaced  ' ]",
			want: []Invocation{{Tag: "say", Form: FormShort, Args: []string{"  spaced  "}}},
		},
		{
			name: "empty middle argument kept",
			text: "t[a,,b]",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"a", "", "b"}}},
		},
		{
			name: "trailing comma drops empty tail",
			text: "t[a,]",
			want: []Invocation{{Tag: "t", Form: FormShort, Args: []string{"a"}}},
		},
		{
			name: "backtick quotes",
			text: "mqtt[lights/1, `{\"on\": true, \"level\": 5}`]",
			want: []Invocation{{Tag: "mqtt", Form: FormShort, Args: []string{"lights/1", "{\"on\": true, \"level\": 5}"}}},
		},
		{
			name: "apostrophe inside an unquoted argument is literal",
			text: "log[don't panic]",
			want: []Invocation{{Tag: "log", Form: FormShort, Args: []string{"don't panic"}}},
		},
		{
			name: "extracted long block separates neighbouring text",
			text: "pre[log]x[/log]note[5]",
			want: []Invocation{
				{Tag: "log", Form: FormLong, Args: []string{"x"}},
				{Tag: "note", Form: FormShort, Args: []string{"5"}},
			},
		},
		{
			name: "whitespace resets tag name",
			text: "no te[1]",
			want: []Invocation{{Tag: "te", Form: FormShort, Args: []string{"1"}}},
		},
		{
			name: "surrounding prose ignored",
			text: "Verse 1 lyrics (cue: note[60, 100]) and more",
			want: []Invocation{{Tag: "note", Form: FormShort, Args: []string{"60", "100"}}},
		},
		{
			name: "multiple short tags in order",
			text: "pc[1]\ncc[7,100]",
			want: []Invocation{
				{Tag: "pc", Form: FormShort, Args: []string{"1"}},
				{Tag: "cc", Form: FormShort, Args: []string{"7", "100"}},
			},
		},
		{
			name: "unterminated argument list discarded",
			text: "pc[1] cc[7,100",
			want: []Invocation{{Tag: "pc", Form: FormShort, Args: []string{"1"}}},
		},
		{
			name: "unterminated quote discarded",
			text: "log['never closed]",
			want: nil,
		},
		{
			name: "long form without close left as text",
			text: "[log]dangling note[3]",
			want: []Invocation{{Tag: "note", Form: FormShort, Args: []string{"3"}}},
		},
		{
			name: "mismatched long form names fall through to short form",
			text: "[log]x[/vmix]",
			want: []Invocation{{Tag: "x", Form: FormShort, Args: []string{"/vmix"}}},
		},
		{
			name: "bracket without tag ignored",
			text: "[1, 2] plain",
			want: nil,
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"[", "]", "[[", "]]", "[/]", "[]", "a[", "a['", "a[`x", "[a]", "[a][/", "[a][/a",
		"\\", "t['\\']", "😎[x]", "[😎]y[/😎]", "~x~[]",
	}
	for _, in := range inputs {
		_ = Parse(in)
	}
}

func TestLifecycleTag(t *testing.T) {
	if got := LifecycleTag("slideupdate"); got != "~slideupdate~" {
		t.Errorf("LifecycleTag() = %q, want %q", got, "~slideupdate~")
	}
	if !IsLifecycleTag("~slideupdate~") {
		t.Error("IsLifecycleTag(~slideupdate~) = false, want true")
	}
	if IsLifecycleTag("note") || IsLifecycleTag("~~") {
		t.Error("IsLifecycleTag() accepted a non-lifecycle tag")
	}
}

func TestFormString(t *testing.T) {
	if FormLong.String() != "long" || FormShort.String() != "short" {
		t.Errorf("Form.String() = %q/%q", FormLong.String(), FormShort.String())
	}
}
