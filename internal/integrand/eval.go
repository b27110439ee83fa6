package integrand

import (
	"fmt"
	"go/ast"
	"go/token"
	"math"

	"parallel-integrator/internal/protocol"
)

type point struct {
	x, y float64
}

type evalFunc func(p *point) (float64, error)

type function struct {
	arity int
	call  func(args []float64) float64
}

var variables = map[string]func(p *point) float64{
	"x": func(p *point) float64 { return p.x },
	"y": func(p *point) float64 { return p.y },
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(f func(float64) float64) function {
	return function{arity: 1, call: func(a []float64) float64 { return f(a[0]) }}
}

func binary(f func(float64, float64) float64) function {
	return function{arity: 2, call: func(a []float64) float64 { return f(a[0], a[1]) }}
}

var functions = map[string]function{
	"abs":   unary(math.Abs),
	"sqrt":  unary(math.Sqrt),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"atan2": binary(math.Atan2),
	"pow":   binary(math.Pow),
	"hypot": binary(math.Hypot),
	"min":   binary(math.Min),
	"max":   binary(math.Max),
}

// Program скомпилированное подынтегральное выражение f(x, y).
// Не имеет состояния и безопасно для конкурентного использования.
type Program struct {
	source string
	root   evalFunc
}

// Compile разбирает и компилирует выражение от переменных x и y
func Compile(expression string) (*Program, error) {
	node, err := CreateAST(expression)
	if err != nil {
		return nil, err
	}
	root, err := compile(node)
	if err != nil {
		return nil, err
	}
	return &Program{source: expression, root: root}, nil
}

// Source исходный текст выражения
func (p *Program) Source() string {
	return p.source
}

// Eval вычисляет f(x, y). Деление на ноль, NaN и бесконечность дают
// ошибку вычисления с указанием точки.
func (p *Program) Eval(x, y float64) (float64, error) {
	pt := point{x: x, y: y}
	value, err := p.root(&pt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v at (x=%g, y=%g)", protocol.ErrEvaluation, err, x, y)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q is not finite at (x=%g, y=%g)", protocol.ErrEvaluation, p.source, x, y)
	}
	return value, nil
}

func compile(node ast.Expr) (evalFunc, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		value, err := parseNumber(n)
		if err != nil {
			return nil, err
		}
		return func(*point) (float64, error) { return value, nil }, nil

	case *ast.Ident:
		if v, ok := variables[n.Name]; ok {
			return func(p *point) (float64, error) { return v(p), nil }, nil
		}
		if c, ok := constants[n.Name]; ok {
			return func(*point) (float64, error) { return c, nil }, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.Name)

	case *ast.ParenExpr:
		return compile(n.X)

	case *ast.UnaryExpr:
		operand, err := compile(n.X)
		if err != nil {
			return nil, err
		}
		if n.Op == token.ADD {
			return operand, nil
		}
		return func(p *point) (float64, error) {
			v, err := operand(p)
			return -v, err
		}, nil

	case *ast.BinaryExpr:
		return compileBinary(n)

	case *ast.CallExpr:
		return compileCall(n)

	default:
		return nil, fmt.Errorf("%w: unsupported node type: %T", ErrInvalidExpression, node)
	}
}

func compileBinary(n *ast.BinaryExpr) (evalFunc, error) {
	left, err := compile(n.X)
	if err != nil {
		return nil, err
	}
	right, err := compile(n.Y)
	if err != nil {
		return nil, err
	}

	var op func(a, b float64) (float64, error)
	switch n.Op {
	case token.ADD:
		op = func(a, b float64) (float64, error) { return a + b, nil }
	case token.SUB:
		op = func(a, b float64) (float64, error) { return a - b, nil }
	case token.MUL:
		op = func(a, b float64) (float64, error) { return a * b, nil }
	case token.QUO:
		op = func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}
	case token.REM:
		// знак остатка совпадает со знаком делителя
		op = func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			r := math.Mod(a, b)
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return r, nil
		}
	default:
		return nil, fmt.Errorf("%w: unsupported operator: %s", ErrInvalidExpression, n.Op)
	}

	return func(p *point) (float64, error) {
		a, err := left(p)
		if err != nil {
			return 0, err
		}
		b, err := right(p)
		if err != nil {
			return 0, err
		}
		return op(a, b)
	}, nil
}

func compileCall(n *ast.CallExpr) (evalFunc, error) {
	ident, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported call target %T", ErrInvalidExpression, n.Fun)
	}
	fn, ok := functions[ident.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, ident.Name)
	}
	if len(n.Args) != fn.arity {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrWrongArgumentCount, ident.Name, fn.arity, len(n.Args))
	}

	args := make([]evalFunc, len(n.Args))
	for i, arg := range n.Args {
		compiled, err := compile(arg)
		if err != nil {
			return nil, err
		}
		args[i] = compiled
	}

	name := ident.Name
	return func(p *point) (float64, error) {
		values := make([]float64, len(args))
		for i, arg := range args {
			v, err := arg(p)
			if err != nil {
				return 0, err
			}
			values[i] = v
		}
		result := fn.call(values)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return 0, fmt.Errorf("math domain error in %s", name)
		}
		return result, nil
	}, nil
}
