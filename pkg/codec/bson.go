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
	"encoding/base64"
	"encoding/json"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// BSON encodes primitives as JSON and everything else as base64 BSON of a
// {v: value} document, since BSON has no top-level scalars.
// BSON datetimes have millisecond precision: a time.Time replays truncated to
// the millisecond. Use the JSON or CBOR codec when sub-millisecond values matter.
type BSON struct{}

// Serialize 实现 intercept.Codec
func (BSON) Serialize(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if isPrimitive(reflect.TypeOf(v)) {
		return JSON{}.Serialize(v)
	}
	b, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Deserialize 实现 intercept.Codec
func (BSON) Deserialize(s string, t reflect.Type) (any, error) {
	if t != nil && isPrimitive(t) {
		return decodeInto(s, t, func(ptr any) error {
			return json.Unmarshal([]byte(s), ptr)
		})
	}
	return decodeInto(s, t, func(ptr any) error {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		wrapper := reflect.New(reflect.StructOf([]reflect.StructField{{
			Name: "V",
			Type: t,
			Tag:  `bson:"v"`,
		}}))
		if err := bson.Unmarshal(b, wrapper.Interface()); err != nil {
			return err
		}
		reflect.ValueOf(ptr).Elem().Set(wrapper.Elem().Field(0))
		return nil
	})
}

func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
