// Package expr compiles filter expressions written in the Common Expression Language.
//
// An expression sees the serialised record (hidden fields included) as the variable
// record, for example:
//
//	record.last == "Doe" && record.age >= 18
//	record.first.startsWith("J")
package expr

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/google/cel-go/cel"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var plog = logger.GetLogger("expr")

// Variable is the name under which the record is visible to expressions
const Variable = "record"

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func environment() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable(Variable, cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return env, envErr
}

// Expression is a compiled boolean expression.
//
// Thread-safety: Eval and Match can be called concurrently.
type Expression struct {
	src string
	prg cel.Program
}

// Compile parses and checks src. Expressions that do not return a boolean (or a dynamic
// value) return an error with code common.ErrCConfiguration.
func Compile(src string) (*Expression, error) {
	e, err := environment()
	if err != nil {
		return nil, common.Wrap(common.ErrCConfiguration, "", "cannot create expression environment", err)
	}
	ast, iss := e.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, common.Wrap(common.ErrCConfiguration, "", fmt.Sprintf("invalid expression %q", src), iss.Err())
	}
	if t := ast.OutputType().String(); t != "bool" && t != "dyn" {
		return nil, common.Errorf(common.ErrCConfiguration, "", "expression %q returns %s, expected bool", src, t)
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, common.Wrap(common.ErrCConfiguration, "", fmt.Sprintf("cannot plan expression %q", src), err)
	}
	return &Expression{src: src, prg: prg}, nil
}

// MustCompile is like Compile but panics if the expression is invalid
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (x *Expression) String() string { return x.src }

// Eval evaluates the expression against the serialised record data
func (x *Expression) Eval(data map[string]interface{}) (bool, error) {
	out, _, err := x.prg.Eval(map[string]interface{}{Variable: data})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", x.src, out.Value())
	}
	return b, nil
}

// Match evaluates the expression against a record. Evaluation errors (e.g. a missing
// key) count as no match.
func (x *Expression) Match(r *model.Record) bool {
	ok, err := x.Eval(r.ToData(model.DataOptions{Hidden: true}))
	if err != nil {
		plog.Debugf("expression %q on %s: %v", x.src, r, err)
		return false
	}
	return ok
}
