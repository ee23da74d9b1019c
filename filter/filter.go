// Package filter selects rows of an asynchronous query result with expr
// expressions such as:
//
//	type == "f" && size > GiB(10) && daysSince(mt) > 365
//
// Every column of a row is available as a variable of the same name, and the
// whole row as Row (use Row["some-column"] for names that are not identifiers).
// Timestamps are Unix seconds, as Starfish reports them.
package filter

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled row expression. It is safe for concurrent use.
type Filter struct {
	expression string
	program    *vm.Program
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache keeps up to size compiled filters keyed by expression.
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = newLRUCache[*Filter](size)
		}
	}
}

// Compiler compiles row expressions, optionally caching the result.
type Compiler struct {
	cache *lruCache[*Filter]
}

// NewCompiler creates a new Compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles expression with the default, uncached compiler.
func Compile(expression string) (*Filter, error) {
	return NewCompiler().Compile(expression)
}

// Compile compiles an expression into a Filter. The expression must
// evaluate to a boolean.
func (c *Compiler) Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	if c.cache != nil {
		if f, ok := c.cache.get(expression); ok {
			return f, nil
		}
	}

	env := helpers()
	env["Row"] = map[string]any{}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(), // columns are only known at run time
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	f := &Filter{expression: expression, program: program}
	if c.cache != nil {
		c.cache.put(expression, f)
	}
	return f, nil
}

// CacheSize returns the number of cached filters
func (c *Compiler) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.len()
}

// Expression returns the original expression
func (f *Filter) Expression() string {
	return f.expression
}

// Match evaluates the filter against one row.
func (f *Filter) Match(row map[string]any) (bool, error) {
	env := make(map[string]any, len(row)+16)
	maps.Copy(env, row)
	// helpers shadow columns of the same name so the compiled types hold
	maps.Copy(env, helpers())
	env["Row"] = row

	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// Apply returns the rows the filter matches, in their original order.
func (f *Filter) Apply(rows []map[string]any) ([]map[string]any, error) {
	matched := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		ok, err := f.Match(row)
		if err != nil {
			return nil, &EvaluationError{Expression: f.expression, Row: i, Err: err}
		}
		if ok {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func helpers() map[string]any {
	return map[string]any{
		// Date helpers, all in Unix seconds
		"daysSince": func(ts any) float64 {
			return time.Since(time.Unix(int64(number(ts)), 0)).Hours() / 24
		},
		"daysAgo": func(days any) float64 {
			return float64(time.Now().Add(-time.Duration(number(days)*24) * time.Hour).Unix())
		},
		"epoch": func(date string) float64 {
			t, err := time.Parse("2006-01-02", date)
			if err != nil {
				return 0
			}
			return float64(t.Unix())
		},
		// Size helpers
		"KiB": func(n any) float64 { return number(n) * (1 << 10) },
		"MiB": func(n any) float64 { return number(n) * (1 << 20) },
		"GiB": func(n any) float64 { return number(n) * (1 << 30) },
		"TiB": func(n any) float64 { return number(n) * (1 << 40) },
	}
}

// number converts a column value to float64. JSON numbers arrive as float64,
// but some exports render them as strings.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
