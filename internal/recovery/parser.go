package recovery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Call is a single name(args) invocation found in an agent response.
// Args hold int64, float64, string, bool or []any values.
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%v)", c.Name, c.Args)
}

// callPattern mirrors how responses have always been scanned: one call per
// line, with the argument list running to the last closing parenthesis.
var callPattern = regexp.MustCompile(`(\w+)\((.*)\)`)

// argsGrammar is the participle grammar for a comma separated argument list.
//
//nolint:govet // participle grammar tags are not standard struct tags
type argsGrammar struct {
	Args []*argGrammar `parser:"( @@ ( \",\" @@ )* \",\"? )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type argGrammar struct {
	Number *string       `parser:"  @Number"`
	String *string       `parser:"| @String"`
	Bool   *string       `parser:"| @(\"true\" | \"false\" | \"True\" | \"False\")"`
	List   []*argGrammar `parser:"| \"[\" ( @@ ( \",\" @@ )* \",\"? )? \"]\""`
	Tuple  *tupleGrammar `parser:"| \"(\" @@ \")\""`
}

//nolint:govet // participle grammar tags are not standard struct tags
type tupleGrammar struct {
	Items []*argGrammar `parser:"( @@ ( \",\" @@ )* \",\"? )?"`
}

var argsLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"|'(\\.|[^'\\])*'`},
	{Name: "Ident", Pattern: `[A-Za-z_]\w*`},
	{Name: "Punct", Pattern: `[\[\](),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var argsParser = participle.MustBuild[argsGrammar](
	participle.Lexer(argsLexer),
	participle.Elide("Whitespace"),
)

// ParseCalls scans text for calls whose name is in the action table. Calls
// to unknown names are dropped. A malformed argument list of a known action
// is an error.
func ParseCalls(text string) ([]Call, error) {
	var calls []Call
	for _, m := range callPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := actionTable[name]; !ok {
			continue
		}
		args, err := ParseArgs(m[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		calls = append(calls, Call{Name: name, Args: args})
	}
	return calls, nil
}

// ParseArgs parses the inside of an argument list.
func ParseArgs(src string) ([]any, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	parsed, err := argsParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments %q: %w", src, err)
	}
	return convertArgs(parsed.Args)
}

func convertArgs(in []*argGrammar) ([]any, error) {
	out := make([]any, 0, len(in))
	for _, a := range in {
		v, err := convertArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func convertArg(a *argGrammar) (any, error) {
	switch {
	case a.Number != nil:
		if n, err := strconv.ParseInt(*a.Number, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(*a.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", *a.Number)
		}
		return f, nil
	case a.String != nil:
		return unquote(*a.String)
	case a.Bool != nil:
		return strings.EqualFold(*a.Bool, "true"), nil
	case a.Tuple != nil:
		return convertArgs(a.Tuple.Items)
	default:
		list, err := convertArgs(a.List)
		if err != nil {
			return nil, err
		}
		return list, nil
	}
}

func unquote(raw string) (string, error) {
	if strings.HasPrefix(raw, "'") {
		inner := raw[1 : len(raw)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		raw = `"` + inner + `"`
	}
	s, err := strconv.Unquote(raw)
	if err != nil {
		return "", fmt.Errorf("invalid string literal %s", raw)
	}
	return s, nil
}
