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
	jsoniter "github.com/json-iterator/go"
)

// JSON is the default serializer.
var JSON Serializer = &jsonSerialization{
	encoder: jsoniter.ConfigCompatibleWithStandardLibrary,
	// unknown fields mean the value was written as another type
	decoder: jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		DisallowUnknownFields:  true,
	}.Froze(),
}

type jsonSerialization struct {
	encoder jsoniter.API
	decoder jsoniter.API
}

func (s *jsonSerialization) Name() string {
	return "json"
}

func (s *jsonSerialization) Serialize(v interface{}) ([]byte, error) {
	return s.encoder.Marshal(v)
}

func (s *jsonSerialization) Deserialize(b []byte, v interface{}) error {
	if err := checkTarget(v); err != nil {
		return err
	}
	return s.decoder.Unmarshal(b, v)
}
