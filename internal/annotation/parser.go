package annotation

import (
	"strings"
	"unicode"
)

// Form distinguishes the two invocation grammars.
type Form int

const (
	// FormShort is tag[a,b,...].
	FormShort Form = iota
	// FormLong is [tag]content[/tag].
	FormLong
)

// String returns the lowercase name of the form.
func (f Form) String() string {
	switch f {
	case FormLong:
		return "long"
	default:
		return "short"
	}
}

// Invocation is one parsed occurrence of a tag.
type Invocation struct {
	Tag  string   `json:"tag"`
	Form Form     `json:"form"`
	Args []string `json:"args"`
}

// LifecycleTag returns the tag under which the host lifecycle signal name is
// dispatched, e.g. "slideupdate" becomes "~slideupdate~".
func LifecycleTag(name string) string {
	return "~" + name + "~"
}

// IsLifecycleTag reports whether tag has the ~name~ shape.
func IsLifecycleTag(tag string) bool {
	return len(tag) > 2 && strings.HasPrefix(tag, "~") && strings.HasSuffix(tag, "~")
}

// Parse returns every invocation found in text: long-form blocks first, then
// short-form tags, each group in order of appearance.
func Parse(text string) []Invocation {
	src := []rune(text)

	out, skip := scanLong(src)

	s := &shortScanner{out: out}
	for i := 0; i < len(src); i++ {
		if end, ok := skip[i]; ok {
			// An extracted block reads as a single space.
			s.step(' ')
			i = end - 1
			continue
		}
		s.step(src[i])
	}
	// Anything still open at end of input is discarded.
	return s.out
}

// isIdentRune reports whether r may appear in a tag name.
func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '~'
}

func isQuote(r rune) bool {
	return r == '\'' || r == '"' || r == '`'
}

// ─── Long form ──────────────────────────────────────────────────────────────

// scanLong finds every [tag]...[/tag] block. It returns the invocations and a
// map from block start offset to block end offset (exclusive) so the short
// scanner can step over them.
func scanLong(src []rune) ([]Invocation, map[int]int) {
	var out []Invocation
	skip := make(map[int]int)

	for i := 0; i < len(src); i++ {
		if src[i] != '[' {
			continue
		}
		name, contentStart, ok := readOpenTag(src, i)
		if !ok {
			continue
		}
		closeStart, closeEnd, ok := findCloseTag(src, contentStart, name)
		if !ok {
			continue
		}
		out = append(out, Invocation{
			Tag:  name,
			Form: FormLong,
			Args: []string{string(src[contentStart:closeStart])},
		})
		skip[i] = closeEnd
		i = closeEnd - 1
	}

	return out, skip
}

// readOpenTag reads "[name]" starting at src[at] == '['.
func readOpenTag(src []rune, at int) (name string, next int, ok bool) {
	j := at + 1
	for j < len(src) && isIdentRune(src[j]) {
		j++
	}
	if j == at+1 || j >= len(src) || src[j] != ']' {
		return "", 0, false
	}
	return string(src[at+1 : j]), j + 1, true
}

// findCloseTag looks for the first "[/name]" at or after from, ignoring case.
func findCloseTag(src []rune, from int, name string) (start, end int, ok bool) {
	n := len([]rune(name))
	for j := from; j+n+3 <= len(src); j++ {
		if src[j] != '[' || src[j+1] != '/' || src[j+2+n] != ']' {
			continue
		}
		if strings.EqualFold(string(src[j+2:j+2+n]), name) {
			return j, j + n + 3, true
		}
	}
	return 0, 0, false
}

// ─── Short form ─────────────────────────────────────────────────────────────

type scanState int

const (
	stateIdle scanState = iota
	stateTagName
	stateArgs
	stateQuote
)

type shortScanner struct {
	state scanState
	tag   strings.Builder
	buf   strings.Builder
	args  []string
	quote rune
	// closedQuote is set after a quoted argument was pushed, so the following
	// separator does not push an extra empty argument.
	closedQuote bool
	out         []Invocation
}

func (s *shortScanner) step(r rune) {
	switch s.state {
	case stateIdle:
		if isIdentRune(r) {
			s.tag.Reset()
			s.tag.WriteRune(r)
			s.state = stateTagName
		}

	case stateTagName:
		switch {
		case isIdentRune(r):
			s.tag.WriteRune(r)
		case r == '[':
			s.args = []string{}
			s.buf.Reset()
			s.closedQuote = false
			s.state = stateArgs
		default:
			s.tag.Reset()
			s.state = stateIdle
		}

	case stateArgs:
		s.stepArgs(r)

	case stateQuote:
		if r == s.quote {
			s.args = append(s.args, decodeEscapes(s.buf.String()))
			s.buf.Reset()
			s.closedQuote = true
			s.state = stateArgs
			return
		}
		s.buf.WriteRune(r)
	}
}

func (s *shortScanner) stepArgs(r rune) {
	switch {
	case isQuote(r) && strings.TrimSpace(s.buf.String()) == "":
		s.buf.Reset()
		s.quote = r
		s.state = stateQuote

	case r == ',':
		s.pushBuffer(false)
		s.closedQuote = false

	case r == ']':
		s.pushBuffer(true)
		s.out = append(s.out, Invocation{
			Tag:  s.tag.String(),
			Form: FormShort,
			Args: s.args,
		})
		s.tag.Reset()
		s.args = nil
		s.state = stateIdle

	default:
		s.buf.WriteRune(r)
	}
}

// pushBuffer appends the trimmed buffer as an argument. On the closing
// bracket only a non-empty buffer is pushed.
func (s *shortScanner) pushBuffer(closing bool) {
	v := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if v == "" && (closing || s.closedQuote) {
		return
	}
	s.args = append(s.args, v)
}

var escapeReplacer = strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t")

func decodeEscapes(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return escapeReplacer.Replace(v)
}
