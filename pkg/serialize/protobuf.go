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
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/types"
)

// Protobuf encodes proto.Message values.
var Protobuf Serializer = &protobufSerialization{}

type protobufSerialization struct{}

func (s *protobufSerialization) Name() string {
	return "protobuf"
}

func (s *protobufSerialization) Serialize(v interface{}) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Wrapf(types.ErrInvalidArgument, "%T is not a proto.Message", v)
	}
	return proto.Marshal(msg)
}

func (s *protobufSerialization) Deserialize(b []byte, v interface{}) error {
	if err := checkTarget(v); err != nil {
		return err
	}
	msg, ok := v.(proto.Message)
	if !ok {
		return errors.Wrapf(types.ErrInvalidArgument, "%T is not a proto.Message", v)
	}
	return proto.Unmarshal(b, msg)
}
