// Package parser is a hand-written recursive-descent parser for the
// source language, grounded on this compiler's original character-
// stream scanner: no separate tokenization pass, each production
// reads exactly the bytes its grammar rule consumes via
// internal/lexer's Scanner primitives.
package parser

import (
	"fmt"
	"io"

	"github.com/aclements/sigilc/internal/ast"
	"github.com/aclements/sigilc/internal/lexer"
)

// Error is a parse-time failure: malformed tokens, unexpected
// characters, or a missing delimiter. The driver reports it prefixed
// with "Parser error:" and exits 1.
type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Msg: err.Error()}
}

const maxArgs = 6

// Parser holds the scanning cursor and the one piece of grammar state
// the original needs: whether we're inside a method body, which
// forbids assigning to the identifier "this".
type Parser struct {
	s                *lexer.Scanner
	insideMethodBody bool
}

// Parse reads a whole program from r.
func Parse(r io.Reader) (*ast.Program, error) {
	p := &Parser{s: lexer.New(r)}
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	var classes []*ast.Class
	for {
		p.s.SkipSpacesAndNewlines()
		if p.s.Peek() != 'c' {
			break
		}
		c, err := p.parseClass()
		if err != nil {
			return nil, err
		}
		for _, existing := range classes {
			if existing.Name == c.Name {
				return nil, &Error{Msg: "two classes with the same name, cannot statically type: " + c.Name}
			}
		}
		classes = append(classes, c)
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar('\n', "missing newline at end of class definition")); err != nil {
			return nil, err
		}
	}

	p.insideMethodBody = false
	if err := wrap(p.s.ExpectWord("main", "missing main program block")); err != nil {
		return nil, err
	}
	if err := wrap(p.s.ExpectChar(' ', "missing space after main")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectWord("with", "missing with after main")); err != nil {
		return nil, err
	}

	var locals []ast.Param
	if p.s.Peek() != ':' {
		if err := wrap(p.s.ExpectChar(' ', "missing space after with")); err != nil {
			return nil, err
		}
		var err error
		locals, err = p.parseLocalsList()
		if err != nil {
			return nil, err
		}
		if len(locals) == 0 {
			return nil, &Error{Msg: "cannot have a program with zero local variables"}
		}
	}
	if err := wrap(p.s.ExpectChar(':', "missing colon at end of main declaration")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('\n', "missing newline at end of main declaration")); err != nil {
		return nil, err
	}

	var stmts []ast.Stmt
	for {
		p.s.SkipSpacesAndNewlines()
		if p.s.AtEOF() {
			break
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.s.SkipSpaces()
		if p.s.AtEOF() {
			break
		}
		if c := p.s.Peek(); c != '\n' {
			return nil, &Error{Msg: "statement does not end with newline or EOF"}
		}
		p.s.Next()
	}

	return &ast.Program{Classes: classes, MainLocals: locals, MainBody: stmts}, nil
}

// parseLocalsList parses a comma-separated "name:Type" list, stopping
// before ':' or at a parse error. Used for main's and a method's
// locals.
func (p *Parser) parseLocalsList() ([]ast.Param, error) {
	var out []ast.Param
	for {
		p.s.SkipSpaces()
		if p.s.Peek() == ':' {
			break
		}
		name := p.s.ReadWhile(lexer.IsAlpha)
		if name == "" {
			return nil, &Error{Msg: "invalid local variable name"}
		}
		if err := wrap(p.s.ExpectChar(':', "local missing colon between variable and type")); err != nil {
			return nil, err
		}
		typ := p.s.ReadWhile(lexer.IsAlpha)
		if typ == "" {
			return nil, &Error{Msg: "invalid named type for local " + name}
		}
		out = append(out, ast.Param{Name: name, Type: typ})
		p.s.SkipSpaces()
		if p.s.Peek() != ',' {
			break
		}
		p.s.Next()
	}
	return out, nil
}

func (p *Parser) parseClass() (*ast.Class, error) {
	if err := wrap(p.s.ExpectWord("class", "class must start with \"class\"")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	name := p.s.ReadWhile(lexer.IsUpper)
	if name == "" {
		return nil, &Error{Msg: "invalid class name"}
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('[', "class missing opening bracket")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('\n', "class missing opening newline")); err != nil {
		return nil, err
	}
	p.s.SkipSpacesAndNewlines()

	var fields []ast.Param
	if p.s.Peek() == 'f' {
		if err := wrap(p.s.ExpectWord("fields", "class expected \"fields\"")); err != nil {
			return nil, err
		}
		if p.s.Peek() != '\n' {
			if err := wrap(p.s.ExpectChar(' ', "class missing space after \"fields\"")); err != nil {
				return nil, err
			}
			n := 0
			for {
				p.s.SkipSpaces()
				c := p.s.Peek()
				if c == ';' || c == '\n' {
					p.s.Next()
					break
				}
				if n > 0 {
					if c != ',' {
						return nil, &Error{Msg: fmt.Sprintf("expected ',' in class fields, got %q", c)}
					}
					p.s.Next()
					p.s.SkipSpaces()
				}
				field := p.s.ReadWhile(lexer.IsAlpha)
				if field == "" {
					return nil, &Error{Msg: "field has zero length"}
				}
				if err := wrap(p.s.ExpectChar(':', "field name missing colon between variable and type")); err != nil {
					return nil, err
				}
				typ := p.s.ReadWhile(lexer.IsAlpha)
				if typ == "" {
					return nil, &Error{Msg: "invalid named type for field " + field}
				}
				fields = append(fields, ast.Param{Name: field, Type: typ})
				n++
			}
		}
	}

	var methods []*ast.Method
	for {
		p.s.SkipSpacesAndNewlines()
		if p.s.Peek() == ']' {
			p.s.Next()
			break
		}
		p.insideMethodBody = true
		m, err := p.parseMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	return &ast.Class{Name: name, Fields: fields, Methods: methods}, nil
}

func (p *Parser) parseMethod() (*ast.Method, error) {
	if err := wrap(p.s.ExpectWord("method", "method declaration must start with method")); err != nil {
		return nil, err
	}
	if err := wrap(p.s.ExpectChar(' ', "space must follow method keyword")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	name := p.s.ReadWhile(lexer.IsAlnum)
	if name == "" {
		return nil, &Error{Msg: "invalid empty method name"}
	}
	if err := wrap(p.s.ExpectChar('(', "method missing opening parenthesis")); err != nil {
		return nil, err
	}
	params, err := p.parseParamsList()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar(')', "method closing parenthesis, or too many parameters")); err != nil {
		return nil, err
	}
	if err := wrap(p.s.ExpectChar(' ', "missing space after method params list")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectWord("returning", "missing returning after method signature")); err != nil {
		return nil, err
	}
	if err := wrap(p.s.ExpectChar(' ', "missing space after returning")); err != nil {
		return nil, err
	}
	retType := p.s.ReadWhile(lexer.IsAlpha)
	if err := wrap(p.s.ExpectChar(' ', "missing space after return type")); err != nil {
		return nil, err
	}
	if err := wrap(p.s.ExpectWord("with", "missing with after method signature")); err != nil {
		return nil, err
	}

	var locals []ast.Param
	if p.s.Peek() != ':' {
		if err := wrap(p.s.ExpectChar(' ', "missing space after with in method signature")); err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectWord("locals", "missing locals after method signature")); err != nil {
			return nil, err
		}
		if p.s.Peek() != ':' {
			if err := wrap(p.s.ExpectChar(' ', "missing space after locals keyword")); err != nil {
				return nil, err
			}
			locals, err = p.parseLocalsList()
			if err != nil {
				return nil, err
			}
		}
	}
	if err := wrap(p.s.ExpectChar(':', "method missing colon before body")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('\n', "method missing initial newline")); err != nil {
		return nil, err
	}

	var stmts []ast.Stmt
	for {
		p.s.SkipSpacesAndNewlines()
		// A method body ends at the class's closing bracket or at
		// the next method declaration; there is no body delimiter of
		// its own, so termination is lookahead on "method ".
		if p.s.Peek() == ']' || p.s.PeekN(len("method ")) == "method " {
			break
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar('\n', "method missing newline between statements")); err != nil {
			return nil, err
		}
	}
	if len(stmts) == 0 {
		return nil, &Error{Msg: "method " + name + " cannot have 0 statements"}
	}

	return &ast.Method{Name: name, ReturnType: retType, Params: params, Locals: locals, Body: stmts}, nil
}

// parseParamsList parses a comma-separated "name:Type" list up to but
// not including the closing ')'.
func (p *Parser) parseParamsList() ([]ast.Param, error) {
	var out []ast.Param
	for n := 0; n < maxArgs; n++ {
		p.s.SkipSpaces()
		c := p.s.Peek()
		if c == ')' {
			break
		}
		if n > 0 {
			if c != ',' {
				return nil, &Error{Msg: fmt.Sprintf("expected ',' in parameter list, got %q", c)}
			}
			p.s.Next()
			p.s.SkipSpaces()
		}
		name := p.s.ReadWhile(lexer.IsAlpha)
		if name == "" {
			return nil, &Error{Msg: "parameter has zero length"}
		}
		if err := wrap(p.s.ExpectChar(':', "parameter missing colon between variable and type")); err != nil {
			return nil, err
		}
		typ := p.s.ReadWhile(lexer.IsAlpha)
		if typ == "" {
			return nil, &Error{Msg: "invalid named type for parameter " + name}
		}
		out = append(out, ast.Param{Name: name, Type: typ})
	}
	return out, nil
}

func (p *Parser) parseBlock(closer byte) ([]ast.Stmt, error) {
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('{', "block missing opening brace")); err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if err := wrap(p.s.ExpectChar('\n', "block missing initial newline")); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for {
		p.s.SkipSpacesAndNewlines()
		if p.s.Peek() == closer {
			p.s.Next()
			break
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar('\n', "block missing newline between statements")); err != nil {
			return nil, err
		}
	}
	if len(stmts) == 0 {
		return nil, &Error{Msg: "block cannot have 0 statements"}
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.s.Peek() {
	case '_':
		p.s.Next()
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar('=', "don't-care assignment missing '='")); err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.DontCare{Val: e}, nil
	case '!':
		p.s.Next()
		obj, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := wrap(p.s.ExpectChar('.', "field update missing '.'")); err != nil {
			return nil, err
		}
		field := p.s.ReadWhile(lexer.IsAlnum)
		if field == "" {
			return nil, &Error{Msg: "invalid field name"}
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar('=', "field update missing '='")); err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.FieldUpdate{Recv: obj, Field: field, Val: val}, nil
	}

	keyword := p.s.ReadWhile(lexer.IsAlpha)
	if p.s.Peek() == '(' {
		if keyword != "print" {
			return nil, &Error{Msg: "expected print statement, got \"" + keyword + "\""}
		}
		p.s.Next()
		p.s.SkipSpaces()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(')', "print statement missing closing parenthesis")); err != nil {
			return nil, err
		}
		return &ast.Print{Val: e}, nil
	}
	p.s.SkipSpaces()
	if p.s.Peek() == '=' {
		if p.insideMethodBody && keyword == "this" {
			return nil, &Error{Msg: "cannot write to this inside a method body"}
		}
		p.s.Next()
		p.s.SkipSpaces()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Var: keyword, Val: e}, nil
	}

	switch keyword {
	case "if":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(':', "if missing colon after condition")); err != nil {
			return nil, err
		}
		thenStmts, err := p.parseBlock('}')
		if err != nil {
			return nil, err
		}
		p.s.SkipSpacesAndNewlines()
		if err := wrap(p.s.ExpectWord("else", "if missing else")); err != nil {
			return nil, err
		}
		elseStmts, err := p.parseBlock('}')
		if err != nil {
			return nil, err
		}
		return &ast.IfElse{Cond: cond, Then: thenStmts, Else: elseStmts}, nil
	case "ifonly":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(':', "ifonly missing colon after condition")); err != nil {
			return nil, err
		}
		body, err := p.parseBlock('}')
		if err != nil {
			return nil, err
		}
		return &ast.IfOnly{Cond: cond, Body: body}, nil
	case "while":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(':', "while missing colon after condition")); err != nil {
			return nil, err
		}
		body, err := p.parseBlock('}')
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body}, nil
	case "return":
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Return{Val: e}, nil
	}

	return nil, &Error{Msg: "found statement starting with \"" + keyword + "\" which is not a valid keyword"}
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	first := p.s.Peek()
	switch {
	case lexer.IsDigit(first):
		digits := p.s.ReadWhile(lexer.IsDigit)
		var val uint32
		if _, err := fmt.Sscanf(digits, "%d", &val); err != nil {
			return nil, &Error{Msg: "integer literal " + digits + " is an invalid value"}
		}
		return &ast.IntLit{Val: val}, nil

	case lexer.IsAlpha(first):
		name := p.s.ReadWhile(lexer.IsAlpha)
		switch name {
		case "this":
			return &ast.This{}, nil
		case "null":
			if p.s.Peek() == ':' {
				p.s.Next()
				class := p.s.ReadWhile(lexer.IsAlpha)
				if class == "" {
					return nil, &Error{Msg: "invalid named class for null expression"}
				}
				return &ast.Null{Class: class}, nil
			}
			return &ast.Ident{Name: name}, nil
		default:
			return &ast.Ident{Name: name}, nil
		}

	case first == '(':
		p.s.Next()
		p.s.SkipSpaces()
		e1, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		op := p.s.Next()
		if op != '+' && op != '-' && op != '*' && op != '/' {
			return nil, &Error{Msg: fmt.Sprintf("%q is not a valid arithmetic operator", op)}
		}
		p.s.SkipSpaces()
		e2, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(')', "arithmetic expression missing closing parenthesis")); err != nil {
			return nil, err
		}
		return &ast.Arith{Op: op, X: e1, Y: e2}, nil

	case first == '^':
		p.s.Next()
		recv, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := wrap(p.s.ExpectChar('.', "call expression missing '.' before method name")); err != nil {
			return nil, err
		}
		method := p.s.ReadWhile(lexer.IsAlnum)
		if method == "" {
			return nil, &Error{Msg: "invalid empty method name"}
		}
		if err := wrap(p.s.ExpectChar('(', "call expression missing opening parenthesis")); err != nil {
			return nil, err
		}
		var args []ast.Expr
		for n := 0; n < maxArgs; n++ {
			p.s.SkipSpaces()
			c := p.s.Peek()
			if c == ')' {
				break
			}
			if n > 0 {
				if c != ',' {
					return nil, &Error{Msg: fmt.Sprintf("expected ',' in call arguments, got %q", c)}
				}
				p.s.Next()
				p.s.SkipSpaces()
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		p.s.SkipSpaces()
		if err := wrap(p.s.ExpectChar(')', "call expression closing parenthesis, or too many parameters")); err != nil {
			return nil, err
		}
		return &ast.Call{Recv: recv, Method: method, Args: args}, nil

	case first == '&':
		p.s.Next()
		recv, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := wrap(p.s.ExpectChar('.', "field read missing '.' before field name")); err != nil {
			return nil, err
		}
		field := p.s.ReadWhile(lexer.IsAlnum)
		if field == "" {
			return nil, &Error{Msg: "invalid field name"}
		}
		return &ast.FieldRead{Recv: recv, Field: field}, nil

	case first == '@':
		p.s.Next()
		class := p.s.ReadWhile(lexer.IsUpper)
		if class == "" {
			return nil, &Error{Msg: "invalid class name"}
		}
		return &ast.New{Class: class}, nil

	default:
		return nil, &Error{Msg: fmt.Sprintf("%q does not start a valid expression", first)}
	}
}
