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

package codec

import (
	"encoding/json"
	"reflect"
)

// JSON encodes values as JSON text.
type JSON struct{}

// Serialize 实现 intercept.Codec
func (JSON) Serialize(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Deserialize 实现 intercept.Codec
func (JSON) Deserialize(s string, t reflect.Type) (any, error) {
	return decodeInto(s, t, func(ptr any) error {
		return json.Unmarshal([]byte(s), ptr)
	})
}
