package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/vm"
)

var (
	// ErrForeignContext is returned when a callable is invoked through a
	// context other than the one it was compiled for.
	ErrForeignContext = errors.New("callable belongs to another context")

	// ErrArity is returned when the number of arguments does not match the
	// callable's parameter list.
	ErrArity = errors.New("wrong number of arguments")

	// ErrCall is returned when the script raises an error while running.
	ErrCall = errors.New("call failed")
)

// Callable is a compiled module function. Risor functions have no receiver,
// so a call is always made without one. Calls are serialized because the
// underlying VM is not safe for concurrent use.
type Callable struct {
	mu      sync.Mutex
	id      string
	owner   *Context
	params  []string
	machine *vm.VirtualMachine
	fn      *object.Function
}

// instantiate evaluates the wrapped program, whose only value is the module
// function, in a fresh VM bound to ec's globals.
func instantiate(ctx context.Context, ec *Context, id string, params []string, code *compiler.Code) (c *Callable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrCompile, id, r)
		}
	}()
	machine := vm.New(code, vm.WithGlobals(ec.globals))
	if err := machine.Run(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, id, err)
	}
	tos, ok := machine.TOS()
	if !ok {
		return nil, fmt.Errorf("%w: %s: wrapped program produced no value", ErrCompile, id)
	}
	fn, ok := tos.(*object.Function)
	if !ok {
		return nil, fmt.Errorf("%w: %s: wrapped program produced %s, not a function",
			ErrCompile, id, tos.Type())
	}
	return &Callable{
		id:      id,
		owner:   ec,
		params:  slices.Clone(params),
		machine: machine,
		fn:      fn,
	}, nil
}

// ID returns the module id the callable was compiled from.
func (c *Callable) ID() string {
	return c.id
}

// Params returns the callable's formal parameter names.
func (c *Callable) Params() []string {
	return slices.Clone(c.params)
}

// Owner returns the id of the context the callable belongs to.
func (c *Callable) Owner() string {
	return c.owner.ID()
}

// CallObjects invokes the callable with Risor objects and returns the
// Risor result.
func (c *Callable) CallObjects(ctx context.Context, ec *Context, args []object.Object) (object.Object, error) {
	if ec != c.owner {
		return nil, fmt.Errorf("%w: %s", ErrForeignContext, c.id)
	}
	if len(args) != len(c.params) {
		return nil, fmt.Errorf("%w: %s takes %d, %d given", ErrArity, c.id, len(c.params), len(args))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.machine.Call(ctx, c.fn, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCall, c.id, err)
	}
	if result == nil {
		return object.Nil, nil
	}
	return result, nil
}

// Call invokes the callable with Go values, converting them to Risor
// objects, and converts the result back to a Go value. Values that already
// are Risor objects are passed through unchanged.
func (c *Callable) Call(ctx context.Context, ec *Context, args ...any) (any, error) {
	objs := make([]object.Object, len(args))
	for i, arg := range args {
		obj, err := ToObject(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", c.id, i, err)
		}
		objs[i] = obj
	}
	result, err := c.CallObjects(ctx, ec, objs)
	if err != nil {
		return nil, err
	}
	return FromObject(result), nil
}

// ToObject converts a Go value to a Risor object.
func ToObject(v any) (object.Object, error) {
	switch v := v.(type) {
	case nil:
		return object.Nil, nil
	case object.Object:
		return v, nil
	}
	obj := object.FromGoType(v)
	if obj == nil {
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	if errObj, ok := obj.(*object.Error); ok {
		return nil, errors.New(errObj.Inspect())
	}
	return obj, nil
}

// FromObject converts a Risor object to a Go value.
func FromObject(obj object.Object) any {
	if obj == nil || obj == object.Nil {
		return nil
	}
	return obj.Interface()
}
