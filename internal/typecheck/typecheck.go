// Package typecheck validates a parsed internal/ast.Program and
// annotates every expression node with its static type, grounded on
// the original compiler's TypeChecker visitor. internal/cfgbuild
// assumes its input has already passed Check.
package typecheck

import (
	"fmt"

	"github.com/aclements/sigilc/internal/ast"
)

const intType = "int"

// Error is a static type error: an undefined variable/field/method, an
// arity or type mismatch, "this" used outside a method, or a
// declared/return type mismatch. The driver reports it prefixed with
// "Type checker error:" and exits 1.
type Error struct {
	Msg    string
	Source string
}

func (e *Error) Error() string {
	if e.Source == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Source)
}

type checker struct {
	classes   map[string]*ast.Class
	env       map[string]string
	currClass string
	currRet   string
}

// Check validates p, annotating every expression's Type() in place.
func Check(p *ast.Program) error {
	c := &checker{classes: map[string]*ast.Class{}}
	for _, cl := range p.Classes {
		c.classes[cl.Name] = cl
	}
	for _, cl := range p.Classes {
		if err := c.checkClass(cl); err != nil {
			return err
		}
	}

	c.currClass = ""
	c.env = map[string]string{}
	c.currRet = intType
	for _, l := range p.MainLocals {
		if _, ok := c.env[l.Name]; ok {
			return &Error{Msg: "local defined twice in main: " + l.Name}
		}
		c.env[l.Name] = l.Type
	}
	for _, s := range p.MainBody {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkClass(cl *ast.Class) error {
	c.currClass = cl.Name
	for _, m := range cl.Methods {
		if err := c.checkMethod(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkMethod(m *ast.Method) error {
	c.env = map[string]string{}
	for _, p := range m.Params {
		if _, ok := c.env[p.Name]; ok {
			return &Error{Msg: "parameter defined twice in method " + m.Name}
		}
		c.env[p.Name] = p.Type
	}
	for _, l := range m.Locals {
		if _, ok := c.env[l.Name]; ok {
			return &Error{Msg: "local defined twice in method " + m.Name}
		}
		c.env[l.Name] = l.Type
	}
	c.currRet = m.ReturnType
	for _, s := range m.Body {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) isKnownType(t string) bool {
	if t == intType {
		return true
	}
	_, ok := c.classes[t]
	return ok
}

func (c *checker) field(class, name string) (string, bool) {
	cl, ok := c.classes[class]
	if !ok {
		return "", false
	}
	for _, f := range cl.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

func (c *checker) method(class, name string) (*ast.Method, bool) {
	cl, ok := c.classes[class]
	if !ok {
		return nil, false
	}
	for _, m := range cl.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

func (c *checker) checkStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Assign:
		expected, ok := c.env[s.Var]
		if !ok {
			return &Error{Msg: "assignment to undeclared variable " + s.Var}
		}
		t, err := c.checkExpr(s.Val)
		if err != nil {
			return err
		}
		if !c.isKnownType(t) {
			return &Error{Msg: "return type of expression does not exist: " + t}
		}
		if t != expected {
			return &Error{Msg: fmt.Sprintf("cannot assign %s to variable %s of type %s", t, s.Var, expected)}
		}
		return nil

	case *ast.DontCare:
		t, err := c.checkExpr(s.Val)
		if err != nil {
			return err
		}
		if !c.isKnownType(t) {
			return &Error{Msg: "return type of expression does not exist: " + t}
		}
		return nil

	case *ast.FieldUpdate:
		recvType, err := c.checkExpr(s.Recv)
		if err != nil {
			return err
		}
		if recvType == intType || !c.isKnownType(recvType) {
			return &Error{Msg: "field update given invalid class " + recvType}
		}
		expected, ok := c.field(recvType, s.Field)
		if !ok {
			return &Error{Msg: "field does not exist in class " + recvType + ": " + s.Field}
		}
		t, err := c.checkExpr(s.Val)
		if err != nil {
			return err
		}
		if !c.isKnownType(t) {
			return &Error{Msg: "return type of expression does not exist: " + t}
		}
		if t != expected {
			return &Error{Msg: fmt.Sprintf("field %s expects type %s, got %s", s.Field, expected, t)}
		}
		return nil

	case *ast.IfElse:
		t, err := c.checkExpr(s.Cond)
		if err != nil {
			return err
		}
		if t != intType {
			return &Error{Msg: "condition of if/else statement must be int"}
		}
		for _, st := range s.Then {
			if err := c.checkStmt(st); err != nil {
				return err
			}
		}
		for _, st := range s.Else {
			if err := c.checkStmt(st); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfOnly:
		t, err := c.checkExpr(s.Cond)
		if err != nil {
			return err
		}
		if t != intType {
			return &Error{Msg: "condition of ifonly statement must be int"}
		}
		for _, st := range s.Body {
			if err := c.checkStmt(st); err != nil {
				return err
			}
		}
		return nil

	case *ast.While:
		t, err := c.checkExpr(s.Cond)
		if err != nil {
			return err
		}
		if t != intType {
			return &Error{Msg: "condition of while statement must be int"}
		}
		for _, st := range s.Body {
			if err := c.checkStmt(st); err != nil {
				return err
			}
		}
		return nil

	case *ast.Return:
		t, err := c.checkExpr(s.Val)
		if err != nil {
			return err
		}
		if !c.isKnownType(t) {
			return &Error{Msg: "return type of expression does not exist: " + t}
		}
		if t != c.currRet {
			return &Error{Msg: fmt.Sprintf("returned type %s differs from method signature %s", t, c.currRet)}
		}
		return nil

	case *ast.Print:
		t, err := c.checkExpr(s.Val)
		if err != nil {
			return err
		}
		if t != intType {
			return &Error{Msg: "value of print statement must be int"}
		}
		return nil
	}
	return &Error{Msg: fmt.Sprintf("unhandled statement kind %T", s)}
}

// SetType is implemented by every ast.Expr via baseExpr but is not
// part of the Expr interface, so this package reaches it through a
// type assertion to typeSetter.
type typeSetter interface{ SetType(string) }

func (c *checker) checkExpr(e ast.Expr) (string, error) {
	var t string
	var err error

	switch e := e.(type) {
	case *ast.IntLit:
		t = intType

	case *ast.Ident:
		var ok bool
		t, ok = c.env[e.Name]
		if !ok {
			return "", &Error{Msg: "undefined variable " + e.Name}
		}

	case *ast.Arith:
		t1, err1 := c.checkExpr(e.X)
		if err1 != nil {
			return "", err1
		}
		if t1 != intType {
			return "", &Error{Msg: "first subexpression of arithmetic expression does not return an integer"}
		}
		t2, err2 := c.checkExpr(e.Y)
		if err2 != nil {
			return "", err2
		}
		if t2 != intType {
			return "", &Error{Msg: "second subexpression of arithmetic expression does not return an integer"}
		}
		t = intType

	case *ast.Call:
		recvType, rerr := c.checkExpr(e.Recv)
		if rerr != nil {
			return "", rerr
		}
		if recvType == intType || !c.isKnownType(recvType) {
			return "", &Error{Msg: "calling method on invalid class " + recvType}
		}
		m, ok := c.method(recvType, e.Method)
		if !ok {
			return "", &Error{Msg: "method does not exist in class " + recvType + ": " + e.Method}
		}
		if len(m.Params) != len(e.Args) {
			return "", &Error{Msg: "calling method with wrong number of parameters: " + e.Method}
		}
		for i, want := range m.Params {
			got, aerr := c.checkExpr(e.Args[i])
			if aerr != nil {
				return "", aerr
			}
			if got != want.Type {
				return "", &Error{Msg: fmt.Sprintf("calling method %s with wrong parameter type at position %d: want %s, got %s", e.Method, i, want.Type, got)}
			}
		}
		t = m.ReturnType

	case *ast.FieldRead:
		recvType, rerr := c.checkExpr(e.Recv)
		if rerr != nil {
			return "", rerr
		}
		if recvType == intType || !c.isKnownType(recvType) {
			return "", &Error{Msg: "field read given invalid class " + recvType}
		}
		ft, ok := c.field(recvType, e.Field)
		if !ok {
			return "", &Error{Msg: "field does not exist in class " + recvType + ": " + e.Field}
		}
		t = ft

	case *ast.New:
		if e.Class == intType || !c.isKnownType(e.Class) {
			return "", &Error{Msg: "new given invalid class " + e.Class}
		}
		t = e.Class

	case *ast.Null:
		if e.Class == intType || !c.isKnownType(e.Class) {
			return "", &Error{Msg: "null given invalid class " + e.Class}
		}
		t = e.Class

	case *ast.This:
		if c.currClass == "" {
			return "", &Error{Msg: "using \"this\" outside the context of a class method"}
		}
		t = c.currClass

	default:
		return "", &Error{Msg: fmt.Sprintf("unhandled expression kind %T", e)}
	}

	if ts, ok := e.(typeSetter); ok {
		ts.SetType(t)
	}
	return t, err
}
