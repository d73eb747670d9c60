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
	"fmt"
	"reflect"
	"sync"
)

// FaultKind is the identifier under which Fault is registered.
const FaultKind = "fault"

// Fault is the portable form of an error whose concrete type is not registered.
type Fault struct {
	// Kind is the Go type of the original error, prefixed with "go:".
	Kind string `json:"kind" bson:"kind" cbor:"kind"`

	// Message is the original error text.
	Message string `json:"message" bson:"message" cbor:"message"`
}

func (f *Fault) Error() string {
	return f.Message
}

// FaultFrom converts err into a Fault.
func FaultFrom(err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Fault); ok {
		return f
	}
	return &Fault{
		Kind:    "go:" + reflect.TypeOf(err).String(),
		Message: err.Error(),
	}
}

// FaultRegistry maps stable identifiers to error types, so recorded faults can
// be raised again on replay without looking types up by name.
type FaultRegistry struct {
	mu     sync.RWMutex
	byKind map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewFaultRegistry creates a registry with Fault pre-registered.
func NewFaultRegistry() *FaultRegistry {
	r := &FaultRegistry{
		byKind: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
	r.MustRegister(FaultKind, &Fault{})
	return r
}

// Register maps kind to the concrete type of prototype.
func (r *FaultRegistry) Register(kind string, prototype error) error {
	if kind == "" {
		return fmt.Errorf("intercept: fault kind must not be empty")
	}
	if prototype == nil {
		return fmt.Errorf("intercept: fault %q: prototype must not be nil", kind)
	}
	t := reflect.TypeOf(prototype)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKind[kind]; ok && existing != t {
		return fmt.Errorf("intercept: fault %q already registered as %s", kind, existing)
	}
	if existing, ok := r.byType[t]; ok && existing != kind {
		return fmt.Errorf("intercept: type %s already registered as %q", t, existing)
	}
	r.byKind[kind] = t
	r.byType[t] = kind
	return nil
}

// MustRegister is like Register but panics on conflict. Intended for startup wiring.
func (r *FaultRegistry) MustRegister(kind string, prototype error) {
	if err := r.Register(kind, prototype); err != nil {
		panic(err)
	}
}

// KindOf returns the identifier registered for the concrete type of err.
func (r *FaultRegistry) KindOf(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.byType[reflect.TypeOf(err)]
	return kind, ok
}

// TypeOf returns the error type registered under kind.
func (r *FaultRegistry) TypeOf(kind string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byKind[kind]
	return t, ok
}

// portable returns the identifier and value to record for err.
// Unregistered errors are recorded as Fault.
func (r *FaultRegistry) portable(err error) (string, error) {
	if kind, ok := r.KindOf(err); ok {
		return kind, err
	}
	return FaultKind, FaultFrom(err)
}

// asError checks that a decoded fault value is a usable error.
func asError(v any) (error, bool) {
	err, ok := v.(error)
	if !ok {
		return nil, false
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, false
	}
	return err, true
}
