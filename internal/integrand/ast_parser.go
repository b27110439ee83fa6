package integrand

import (
	"errors"
	"fmt"
	"go/ast"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
)

// Errors
var (
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrUnknownIdentifier  = errors.New("unknown identifier")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrWrongArgumentCount = errors.New("wrong argument count")
)

// powFunc имя функции, в которую переписывается оператор **
const powFunc = "pow"

type lexeme struct {
	pos token.Pos
	tok token.Token
	lit string
}

// parser рекурсивный спуск по грамматике:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "**" unary ]
//	primary = number | ident | ident "(" [ expr { "," expr } ] ")" | "(" expr ")"
//
// Выражение записывается в одну строку. Комментарии, "//" и "^" не входят в
// грамматику и отклоняются.
type parser struct {
	src  string
	toks []lexeme
	i    int
}

// CreateAST разбирает выражение в дерево go/ast. Оператор **
// представлен вызовом pow, так что дальше по дереву остаются только
// бинарные операции Go.
func CreateAST(expression string) (ast.Expr, error) {
	toks, err := tokenize(expression)
	if err != nil {
		return nil, err
	}

	p := &parser{src: expression, toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().tok != token.EOF {
		return nil, p.errorf("unexpected %s", p.describe(p.peek()))
	}

	if err := validateAST(node); err != nil {
		return nil, err
	}
	return node, nil
}

func tokenize(src string) ([]lexeme, error) {
	if strings.ContainsAny(src, "\n\r") {
		return nil, fmt.Errorf("%w: expression must be a single line", ErrInvalidExpression)
	}

	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, []byte(src), func(pos token.Position, msg string) { errs.Add(pos, msg) }, scanner.ScanComments)

	var toks []lexeme
	for {
		pos, tok, lit := s.Scan()
		if tok == token.COMMENT {
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, lit)
		}
		// точка с запятой, которую сканер вставляет в конце строки
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		// ** в Go это два отдельных токена MUL подряд
		if tok == token.MUL && len(toks) > 0 {
			prev := &toks[len(toks)-1]
			if prev.tok == token.MUL && prev.lit == "" && prev.pos+1 == pos {
				prev.lit = "**"
				continue
			}
		}
		toks = append(toks, lexeme{pos: pos, tok: tok, lit: lit})
		if tok == token.EOF {
			break
		}
	}
	if errs.Len() > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, errs.Err())
	}
	return toks, nil
}

func (p *parser) peek() lexeme {
	return p.toks[p.i]
}

func (p *parser) next() lexeme {
	l := p.toks[p.i]
	if l.tok != token.EOF {
		p.i++
	}
	return l
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrInvalidExpression, fmt.Sprintf(format, args...), p.src)
}

func (p *parser) describe(l lexeme) string {
	if l.tok == token.EOF {
		return "end of expression"
	}
	if l.lit != "" {
		return strconv.Quote(l.lit)
	}
	return strconv.Quote(l.tok.String())
}

func isPower(l lexeme) bool {
	return l.tok == token.MUL && l.lit == "**"
}

func (p *parser) parseExpr() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		l := p.peek()
		if l.tok != token.ADD && l.tok != token.SUB {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{X: left, OpPos: l.pos, Op: l.tok, Y: right}
	}
}

func (p *parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		l := p.peek()
		if isPower(l) || (l.tok != token.MUL && l.tok != token.QUO && l.tok != token.REM) {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{X: left, OpPos: l.pos, Op: l.tok, Y: right}
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	l := p.peek()
	if l.tok == token.ADD || l.tok == token.SUB {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{OpPos: l.pos, Op: l.tok, X: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (ast.Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	l := p.peek()
	if !isPower(l) {
		return base, nil
	}
	p.next()
	// правоассоциативно, и показатель может иметь унарный знак: 2**-x**2
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.CallExpr{
		Fun:  &ast.Ident{NamePos: l.pos, Name: powFunc},
		Args: []ast.Expr{base, exponent},
	}, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	l := p.next()
	switch l.tok {
	case token.INT, token.FLOAT:
		return &ast.BasicLit{ValuePos: l.pos, Kind: l.tok, Value: l.lit}, nil

	case token.IDENT:
		ident := &ast.Ident{NamePos: l.pos, Name: l.lit}
		if p.peek().tok != token.LPAREN {
			return ident, nil
		}
		lparen := p.next()
		call := &ast.CallExpr{Fun: ident, Lparen: lparen.pos}
		if p.peek().tok != token.RPAREN {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if p.peek().tok != token.COMMA {
					break
				}
				p.next()
			}
		}
		rparen := p.next()
		if rparen.tok != token.RPAREN {
			return nil, p.errorf("expected \")\", got %s", p.describe(rparen))
		}
		call.Rparen = rparen.pos
		return call, nil

	case token.LPAREN:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		rparen := p.next()
		if rparen.tok != token.RPAREN {
			return nil, p.errorf("expected \")\", got %s", p.describe(rparen))
		}
		return &ast.ParenExpr{Lparen: l.pos, X: inner, Rparen: rparen.pos}, nil

	default:
		return nil, p.errorf("unexpected %s", p.describe(l))
	}
}

// validateAST проверяет, что дерево содержит только разрешенные элементы
func validateAST(node ast.Expr) error {
	if node == nil {
		return ErrInvalidExpression
	}

	switch n := node.(type) {
	case *ast.BinaryExpr:
		switch n.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		default:
			return fmt.Errorf("%w: unsupported operator: %s", ErrInvalidExpression, n.Op)
		}
		if err := validateAST(n.X); err != nil {
			return err
		}
		return validateAST(n.Y)

	case *ast.UnaryExpr:
		if n.Op != token.ADD && n.Op != token.SUB {
			return fmt.Errorf("%w: unsupported unary operator: %s", ErrInvalidExpression, n.Op)
		}
		return validateAST(n.X)

	case *ast.ParenExpr:
		return validateAST(n.X)

	case *ast.BasicLit:
		if _, err := parseNumber(n); err != nil {
			return err
		}
		return nil

	case *ast.Ident:
		if _, ok := variables[n.Name]; ok {
			return nil
		}
		if _, ok := constants[n.Name]; ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.Name)

	case *ast.CallExpr:
		ident, ok := n.Fun.(*ast.Ident)
		if !ok {
			return fmt.Errorf("%w: unsupported call target %T", ErrInvalidExpression, n.Fun)
		}
		fn, ok := functions[ident.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFunction, ident.Name)
		}
		if len(n.Args) != fn.arity {
			return fmt.Errorf("%w: %s expects %d, got %d", ErrWrongArgumentCount, ident.Name, fn.arity, len(n.Args))
		}
		for _, arg := range n.Args {
			if err := validateAST(arg); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unsupported expression element: %T", ErrInvalidExpression, n)
	}
}

// parseNumber разбирает числовой литерал
func parseNumber(lit *ast.BasicLit) (float64, error) {
	if lit.Kind != token.INT && lit.Kind != token.FLOAT {
		return 0, fmt.Errorf("%w: unsupported literal type: %s", ErrInvalidExpression, lit.Kind)
	}
	value, err := strconv.ParseFloat(lit.Value, 64)
	if err == nil {
		return value, nil
	}
	if lit.Kind == token.INT {
		if i, ierr := strconv.ParseInt(lit.Value, 0, 64); ierr == nil {
			return float64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid numeric value: %s", ErrInvalidExpression, lit.Value)
}
