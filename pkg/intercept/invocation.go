// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package intercept

import (
	"context"
	"reflect"
)

// Method describes one intercepted operation. Decorators declare one per method.
type Method struct {
	// Target identifies the intercepted capability, e.g. "clock.SystemClock".
	Target string

	// Name is the operation name, e.g. "Now".
	Name string

	// ArgTypes optionally declares the parameter types. They are used to decode
	// replayed arguments when the live argument is nil.
	ArgTypes []reflect.Type
}

// ProceedFunc runs the real implementation with the given arguments.
type ProceedFunc func(ctx context.Context, args []any) (any, error)

// Invocation is the interception boundary handed to an Interceptor: the call
// identity, its mutable arguments, and the observed outcome.
type Invocation struct {
	Target string
	Method string

	// Args are passed to the real implementation. Interceptors may overwrite them
	// before calling Proceed.
	Args []any

	// ArgTypes are the declared parameter types, possibly nil.
	ArgTypes []reflect.Type

	// ResultType is the declared result type, used when the real result is nil.
	ResultType reflect.Type

	// Result and Err hold the observed outcome after Proceed.
	// Interceptors may replace them; the decorator returns them to the caller.
	Result any
	Err    error

	proceed   ProceedFunc
	proceeded bool
}

// NewInvocation builds an invocation of m that runs fn as its real implementation.
func NewInvocation(m Method, args []any, fn ProceedFunc) *Invocation {
	return &Invocation{
		Target:   m.Target,
		Method:   m.Name,
		Args:     args,
		ArgTypes: m.ArgTypes,
		proceed:  fn,
	}
}

// Proceed runs the real implementation with the current arguments and stores its outcome.
func (inv *Invocation) Proceed(ctx context.Context) {
	inv.proceeded = true
	inv.Result, inv.Err = inv.proceed(ctx, inv.Args)
}

// Proceeded reports whether the real implementation has been run.
func (inv *Invocation) Proceeded() bool {
	return inv.proceeded
}

// argType returns the type used to decode the replayed argument at index i:
// the runtime type of the live argument, falling back to the declared type.
func (inv *Invocation) argType(i int) reflect.Type {
	if arg := inv.Args[i]; arg != nil {
		return reflect.TypeOf(arg)
	}
	if i < len(inv.ArgTypes) {
		return inv.ArgTypes[i]
	}
	return nil
}

// resultType returns the type used to decode a replayed result.
func (inv *Invocation) resultType() reflect.Type {
	if inv.Result != nil {
		return reflect.TypeOf(inv.Result)
	}
	return inv.ResultType
}

// Interceptor takes control of an invocation. It must call inv.Proceed exactly once.
// A returned error reports a store or codec failure and is fatal for the call.
type Interceptor interface {
	Intercept(ctx context.Context, inv *Invocation) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, inv *Invocation) error

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}

// Chain composes interceptors. The first one is outermost: its Proceed runs the
// next interceptor, and the last one runs the real implementation.
func Chain(interceptors ...Interceptor) Interceptor {
	links := make([]Interceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			links = append(links, ic)
		}
	}
	return chain(links)
}

type chain []Interceptor

func (c chain) Intercept(ctx context.Context, inv *Invocation) error {
	return c.run(ctx, 0, inv)
}

func (c chain) run(ctx context.Context, i int, inv *Invocation) error {
	if i == len(c) {
		inv.Proceed(ctx)
		return nil
	}
	next := inv.proceed
	var innerErr error
	inv.proceed = func(ctx context.Context, _ []any) (any, error) {
		inv.proceed = next
		innerErr = c.run(ctx, i+1, inv)
		return inv.Result, inv.Err
	}
	err := c[i].Intercept(ctx, inv)
	inv.proceed = next
	if err != nil {
		return err
	}
	return innerErr
}

// Call runs fn through ic as an invocation of m and returns the observed outcome.
// A nil interceptor calls fn directly. An interceptor error is returned in place
// of the call's outcome.
func Call[R any](ctx context.Context, ic Interceptor, m Method, args []any, fn func(ctx context.Context, args []any) (R, error)) (R, error) {
	var zero R
	inv := NewInvocation(m, args, func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, args)
	})
	inv.ResultType = reflect.TypeFor[R]()
	if ic == nil {
		inv.Proceed(ctx)
	} else if err := ic.Intercept(ctx, inv); err != nil {
		return zero, err
	}
	if inv.Result == nil {
		return zero, inv.Err
	}
	r, ok := inv.Result.(R)
	if !ok {
		return zero, inv.Err
	}
	return r, inv.Err
}

// ArgAs returns args[i] as T, or the zero value when it is nil or of another type.
// Decorators use it to unpack possibly overridden arguments.
func ArgAs[T any](args []any, i int) T {
	var zero T
	if i >= len(args) || args[i] == nil {
		return zero
	}
	v, ok := args[i].(T)
	if !ok {
		return zero
	}
	return v
}
