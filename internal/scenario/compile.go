package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/mockk/mockk-sub002/internal/call"
	"github.com/mockk/mockk-sub002/internal/double"
	"github.com/mockk/mockk-sub002/internal/dsl"
	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/session"
)

var builtinTypes = map[string]reflect.Type{
	"int":      reflect.TypeFor[int](),
	"int64":    reflect.TypeFor[int64](),
	"float64":  reflect.TypeFor[float64](),
	"string":   reflect.TypeFor[string](),
	"bool":     reflect.TypeFor[bool](),
	"any":      reflect.TypeFor[any](),
	"error":    reflect.TypeFor[error](),
	"context":  reflect.TypeFor[context.Context](),
	"[]string": reflect.TypeFor[[]string](),
}

// typeInfo is a declared type with its method descriptors.
type typeInfo struct {
	name    string
	methods map[string]*methodInfo
}

type methodInfo struct {
	m *call.Method

	// returns is the declared type name of the primary result, for
	// following chains.
	returns string
}

// env holds everything compiled from one scenario.
type env struct {
	s        *session.Session
	types    map[string]*typeInfo
	mocks    map[string]*double.Double
	mockType map[string]string

	captures     map[string]*matcher.List[any]
	captureNames []string
}

func newEnv(s *session.Session) *env {
	return &env{
		s:        s,
		types:    make(map[string]*typeInfo),
		mocks:    make(map[string]*double.Double),
		mockType: make(map[string]string),
		captures: make(map[string]*matcher.List[any]),
	}
}

func (e *env) resolveType(name string) (reflect.Type, error) {
	if t, ok := builtinTypes[name]; ok {
		return t, nil
	}
	if _, ok := e.types[name]; ok {
		return double.Type, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// declareTypes builds method descriptors for every declared type. Type
// names are processed in sorted order so errors are deterministic.
func (e *env) declareTypes(decls map[string]TypeDecl) error {
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
		e.types[name] = &typeInfo{name: name, methods: make(map[string]*methodInfo)}
	}
	sort.Strings(names)

	for _, name := range names {
		ti := e.types[name]
		for _, md := range decls[name].Methods {
			if _, dup := ti.methods[md.Name]; dup {
				return fmt.Errorf("type %s: duplicate method %q", name, md.Name)
			}
			params, err := e.resolveTypes(md.Params)
			if err != nil {
				return fmt.Errorf("type %s: method %s: %w", name, md.Name, err)
			}
			for i, p := range md.Params {
				if p == "context" && i != len(md.Params)-1 {
					return fmt.Errorf("type %s: method %s: context must be the last parameter", name, md.Name)
				}
			}
			returns, err := e.resolveTypes(md.Returns)
			if err != nil {
				return fmt.Errorf("type %s: method %s: %w", name, md.Name, err)
			}
			mi := &methodInfo{m: call.NewMethod(name, md.Name, params, returns)}
			if len(md.Returns) > 0 {
				mi.returns = md.Returns[0]
			}
			ti.methods[md.Name] = mi
		}
	}
	return nil
}

func (e *env) resolveTypes(names []string) ([]reflect.Type, error) {
	out := make([]reflect.Type, len(names))
	for i, n := range names {
		t, err := e.resolveType(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (e *env) createMocks(decls []MockDecl) error {
	for _, md := range decls {
		if _, dup := e.mocks[md.Name]; dup {
			return fmt.Errorf("duplicate mock %q", md.Name)
		}
		ti, ok := e.types[md.Type]
		if !ok {
			return fmt.Errorf("mock %s: unknown type %q", md.Name, md.Type)
		}
		d, err := double.New(e.s, md.Name, ti.descriptors()...)
		if err != nil {
			return err
		}
		e.mocks[md.Name] = d
		e.mockType[md.Name] = md.Type
	}
	return nil
}

func (ti *typeInfo) descriptors() []*call.Method {
	out := make([]*call.Method, 0, len(ti.methods))
	for _, mi := range ti.methods {
		out = append(out, mi.m)
	}
	return out
}

// capture returns the named capture list, creating it on first use.
func (e *env) capture(name string) *matcher.List[any] {
	if l, ok := e.captures[name]; ok {
		return l
	}
	l := &matcher.List[any]{}
	e.captures[name] = l
	e.captureNames = append(e.captureNames, name)
	return l
}

// compiledCall is a call on a named double followed by chained calls.
type compiledCall struct {
	mock  string
	links []compiledLink
}

type compiledLink struct {
	method *methodInfo
	args   []argExpr
}

func (e *env) compileCall(c Call, allowMatchers bool) (*compiledCall, error) {
	typeName, ok := e.mockType[c.Mock]
	if !ok {
		return nil, fmt.Errorf("unknown mock %q", c.Mock)
	}
	cc := &compiledCall{mock: c.Mock}

	links := append([]Link{{Method: c.Method, Args: c.Args}}, c.Then...)
	for i, l := range links {
		ti, ok := e.types[typeName]
		if !ok {
			return nil, fmt.Errorf("%s: %s does not return a declared type", c.Mock, links[i-1].Method)
		}
		mi, ok := ti.methods[l.Method]
		if !ok {
			return nil, fmt.Errorf("%s: type %s has no method %q", c.Mock, typeName, l.Method)
		}
		args, err := e.compileArgs(mi.m, l.Args, allowMatchers)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Mock, l.Method, err)
		}
		cc.links = append(cc.links, compiledLink{method: mi, args: args})
		typeName = mi.returns
	}
	return cc, nil
}

func (e *env) compileArgs(m *call.Method, raw []any, allowMatchers bool) ([]argExpr, error) {
	want := m.Arity()
	if m.Suspend {
		want--
	}
	if len(raw) != want {
		return nil, fmt.Errorf("%d arguments given, %d expected", len(raw), want)
	}
	out := make([]argExpr, len(raw))
	for i, r := range raw {
		x, err := e.compileArg(r, m.ParamTypes[i], allowMatchers, i == 0)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = x
	}
	return out, nil
}

// argExpr produces one argument value. Inside a recording block,
// matcher expressions register their matcher and produce placeholders.
type argExpr interface {
	eval(e *env, t reflect.Type) any
	String() string
}

type literalExpr struct {
	value any
	text  string
}

func (x literalExpr) eval(*env, reflect.Type) any { return x.value }
func (x literalExpr) String() string { return x.text }

type matcherExpr struct {
	op       string
	value    any
	mock     *double.Double
	capture  string
	operands []argExpr
}

func (x *matcherExpr) eval(e *env, t reflect.Type) any {
	var m *matcher.Matcher
	switch x.op {
	case "any":
		m = matcher.Any()
	case "eq":
		m = matcher.Eq(x.value)
	case "lt":
		m = matcher.Cmp(matcher.OpLess, x.value)
	case "le":
		m = matcher.Cmp(matcher.OpLessOrEqual, x.value)
	case "gt":
		m = matcher.Cmp(matcher.OpGreater, x.value)
	case "ge":
		m = matcher.Cmp(matcher.OpGreaterOrEqual, x.value)
	case "null":
		m = matcher.IsNull()
	case "not_null":
		m = matcher.NotNull()
	case "capture":
		m = matcher.Capture(e.capture(x.capture))
	case "all_any":
		m = matcher.AllAny()
	case "ref":
		m = matcher.Ref(x.mock)
	case "and", "or", "not":
		vals := make([]any, len(x.operands))
		for i, o := range x.operands {
			vals[i] = o.eval(e, t)
		}
		switch x.op {
		case "and":
			m = matcher.And(vals[0], vals[1])
		case "or":
			m = matcher.Or(vals[0], vals[1])
		default:
			m = matcher.Not(vals[0])
		}
	}
	return dsl.Match(e.s, m, t)
}

func (x *matcherExpr) String() string {
	switch x.op {
	case "any", "all_any", "null", "not_null":
		return x.op + "()"
	case "capture":
		return fmt.Sprintf("capture(%s)", x.capture)
	case "ref":
		return fmt.Sprintf("ref(%s)", x.mock.MockIdentity().Name)
	case "and", "or", "not":
		parts := make([]string, len(x.operands))
		for i, o := range x.operands {
			parts[i] = o.String()
		}
		return fmt.Sprintf("%s(%s)", x.op, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s(%s)", x.op, call.FormatValue(x.value))
}

// compileArg compiles one argument expression for a parameter of type t.
func (e *env) compileArg(raw any, t reflect.Type, allowMatchers, first bool) (argExpr, error) {
	key, operand, ok := singleKey(raw)
	if !ok {
		v, err := convertValue(raw, t)
		if err != nil {
			return nil, err
		}
		return literalExpr{value: v, text: call.FormatValue(v)}, nil
	}

	if key == "mock" {
		d, err := e.mockOperand(operand)
		if err != nil {
			return nil, err
		}
		return literalExpr{value: d, text: d.MockIdentity().Name}, nil
	}
	if !allowMatchers {
		return nil, fmt.Errorf("matcher %q is only allowed in stubs and checks", key)
	}

	x := &matcherExpr{op: key}
	switch key {
	case "any":
	case "all_any":
		if !first {
			return nil, errors.New("all_any must be the first argument")
		}
	case "eq", "lt", "le", "gt", "ge":
		v, err := convertValue(operand, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		x.value = v
	case "null":
		b, ok := operand.(bool)
		if !ok {
			return nil, errors.New("null takes true or false")
		}
		if !b {
			x.op = "not_null"
		}
	case "not_null":
	case "capture":
		name, ok := operand.(string)
		if !ok || name == "" {
			return nil, errors.New("capture takes a list name")
		}
		x.capture = name
		e.capture(name)
	case "ref":
		d, err := e.mockOperand(operand)
		if err != nil {
			return nil, err
		}
		x.mock = d
	case "and", "or":
		list, ok := operand.([]any)
		if !ok || len(list) != 2 {
			return nil, fmt.Errorf("%s takes a list of two expressions", key)
		}
		for _, o := range list {
			sub, err := e.compileArg(o, t, true, false)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			x.operands = append(x.operands, sub)
		}
	case "not":
		sub, err := e.compileArg(operand, t, true, false)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		x.operands = []argExpr{sub}
	default:
		return nil, fmt.Errorf("unknown matcher %q", key)
	}
	return x, nil
}

func (e *env) mockOperand(operand any) (*double.Double, error) {
	name, ok := operand.(string)
	if !ok {
		return nil, errors.New("mock reference must be a mock name")
	}
	d, ok := e.mocks[name]
	if !ok {
		return nil, fmt.Errorf("unknown mock %q", name)
	}
	return d, nil
}

// compileValue converts a result value: a literal or a {mock: name}
// reference.
func (e *env) compileValue(raw any, t reflect.Type) (any, error) {
	if key, operand, ok := singleKey(raw); ok {
		if key != "mock" {
			return nil, fmt.Errorf("unexpected %q in a value", key)
		}
		return e.mockOperand(operand)
	}
	return convertValue(raw, t)
}

func singleKey(raw any) (string, any, bool) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		return k, v, true
	}
	return "", nil, false
}

// convertValue converts a decoded YAML scalar or list to type t.
func convertValue(raw any, t reflect.Type) (any, error) {
	switch t {
	case builtinTypes["any"]:
		return raw, nil
	case builtinTypes["context"]:
		return nil, errors.New("context arguments are supplied by the runner")
	case builtinTypes["error"]:
		switch v := raw.(type) {
		case nil:
			return nil, nil
		case string:
			return errors.New(v), nil
		}
	case double.Type:
		if raw == nil {
			return (*double.Double)(nil), nil
		}
		return nil, errors.New("doubles are referenced as {mock: name}")
	}

	if raw == nil {
		return nil, fmt.Errorf("null is not a valid %s", t)
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Float64:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case float64:
			return v, nil
		}
	case reflect.String:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	case reflect.Bool:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
	case reflect.Slice:
		list, ok := raw.([]any)
		if !ok {
			break
		}
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: %v is not a string", i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%v (%T) is not a valid %s", raw, raw, t)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v), nil
		}
	}
	return 0, fmt.Errorf("%v (%T) is not an integer", raw, raw)
}
