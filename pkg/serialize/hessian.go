/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package serialize

import (
	"math"
	"reflect"

	hessian "github.com/apache/dubbo-go-hessian2"
	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/types"
)

// Hessian encodes values with hessian2. Structs must implement hessian.POJO
// and be registered with hessian.RegisterPOJO on every side.
var Hessian Serializer = &hessianSerialization{}

type hessianSerialization struct{}

func (s *hessianSerialization) Name() string {
	return "hessian"
}

func (s *hessianSerialization) Serialize(v interface{}) ([]byte, error) {
	encoder := hessian.NewEncoder()
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return encoder.Buffer(), nil
}

func (s *hessianSerialization) Deserialize(b []byte, v interface{}) error {
	if err := checkTarget(v); err != nil {
		return err
	}
	decoder := hessian.NewDecoder(b)
	field, err := decoder.Decode()
	if err != nil {
		return err
	}
	return assign(field, v)
}

// assign stores a decoded value into the pointer out.
func assign(in interface{}, out interface{}) error {
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Ptr || ov.IsNil() {
		return errors.Wrapf(types.ErrInvalidArgument, "deserialize into non-pointer %T", out)
	}
	target := ov.Elem()
	if in == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	iv := reflect.ValueOf(in)
	switch {
	case iv.Type().AssignableTo(target.Type()):
		target.Set(iv)
	case iv.Kind() == reflect.Ptr && iv.Elem().Type().AssignableTo(target.Type()):
		target.Set(iv.Elem())
	case isNumber(iv.Kind()) && isNumber(target.Kind()):
		cv, ok := convertNumber(iv, target.Type())
		if !ok {
			return errors.Errorf("%v does not fit %s", in, target.Type())
		}
		target.Set(cv)
	default:
		return errors.Errorf("cannot assign %T to %s", in, target.Type())
	}
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertNumber converts iv to t only when the value survives the trip, so a
// fraction, an overflow or a sign change is refused.
func convertNumber(iv reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if isFloat(iv.Kind()) && math.IsNaN(iv.Float()) {
		return iv.Convert(t), isFloat(t.Kind())
	}
	cv := iv.Convert(t)
	if cv.Convert(iv.Type()).Interface() != iv.Interface() {
		return cv, false
	}
	switch {
	case isSigned(iv.Kind()) && isUnsigned(t.Kind()):
		return cv, iv.Int() >= 0
	case isUnsigned(iv.Kind()) && isSigned(t.Kind()):
		return cv, cv.Int() >= 0
	case isFloat(iv.Kind()) && isUnsigned(t.Kind()):
		return cv, iv.Float() >= 0
	}
	return cv, true
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
