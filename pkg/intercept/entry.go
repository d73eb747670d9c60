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

// Package intercept records and replays intercepted interface-method calls.
// A decorator hands each call to an Interceptor as an Invocation; the Recorder
// writes an entry record and an exit record per call to a Store, the Replayer
// reads them back and forces the recorded arguments and outcome onto the live call.
package intercept

// Entry is one recorded half of an intercepted call.
// A call produces an entry record (InputParameters present) followed by an
// exit record (InputParameters nil).
type Entry struct {
	// ClassName identifies the intercepted target. Used for validation only.
	ClassName string `json:"ClassName" bson:"ClassName" cbor:"ClassName"`

	// MethodName identifies the invoked operation. Used for validation only.
	MethodName string `json:"MethodName" bson:"MethodName" cbor:"MethodName"`

	// InputParameters holds the serialized arguments in call order.
	// nil marks an exit record; an entry record of a zero-argument call has an empty, non-nil slice.
	InputParameters []string `json:"InputParameters" bson:"InputParameters" cbor:"InputParameters"`

	// ReturnValue is the serialized result or fault. Empty on entry records.
	ReturnValue string `json:"ReturnValue" bson:"ReturnValue" cbor:"ReturnValue"`

	// ErrorType is the stable fault identifier, empty unless the call failed.
	ErrorType string `json:"ErrorType" bson:"ErrorType" cbor:"ErrorType"`
}

// NewEntryRecord creates the record written before the real implementation runs.
func NewEntryRecord(className, methodName string, inputParameters []string) Entry {
	if inputParameters == nil {
		inputParameters = []string{}
	}
	return Entry{
		ClassName:       className,
		MethodName:      methodName,
		InputParameters: inputParameters,
	}
}

// NewExitRecord creates the record written after the real implementation returned.
// errorType is empty for a returned value.
func NewExitRecord(className, methodName, returnValue, errorType string) Entry {
	return Entry{
		ClassName:   className,
		MethodName:  methodName,
		ReturnValue: returnValue,
		ErrorType:   errorType,
	}
}

// IsEntryRecord reports whether e is the first half of a recorded call.
func (e Entry) IsEntryRecord() bool {
	return e.InputParameters != nil
}

// IsExitRecord reports whether e is the second half of a recorded call.
func (e Entry) IsExitRecord() bool {
	return e.InputParameters == nil
}

// Failed reports whether an exit record captured a fault.
func (e Entry) Failed() bool {
	return e.ErrorType != ""
}

// Clone returns a deep copy so stores never share parameter slices with callers.
func (e Entry) Clone() Entry {
	if e.InputParameters != nil {
		params := make([]string, len(e.InputParameters))
		copy(params, e.InputParameters)
		e.InputParameters = params
	}
	return e
}
