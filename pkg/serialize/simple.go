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
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/types"
)

// Simple encodes strings, string maps and byte slices without a schema. The
// first byte tags the type so that a read into another type fails.
var Simple Serializer = &simpleSerialization{}

const (
	simpleNil byte = iota
	simpleString
	simpleMap
	simpleBytes
)

type simpleSerialization struct{}

func (s *simpleSerialization) Name() string {
	return "simple"
}

func (s *simpleSerialization) Serialize(v interface{}) ([]byte, error) {
	buf := bytes.Buffer{}
	switch value := v.(type) {
	case nil:
		buf.WriteByte(simpleNil)
	case string:
		buf.WriteByte(simpleString)
		buf.WriteString(value)
	case map[string]string:
		buf.WriteByte(simpleMap)
		encodeMap(value, &buf)
	case []byte:
		buf.WriteByte(simpleBytes)
		encodeBytes(value, &buf)
	default:
		return nil, errors.Wrapf(types.ErrInvalidArgument, "simple serializer does not support %T", v)
	}
	return buf.Bytes(), nil
}

func (s *simpleSerialization) Deserialize(b []byte, v interface{}) error {
	if err := checkTarget(v); err != nil {
		return err
	}
	if len(b) == 0 {
		return errors.New("no type tag")
	}
	tag, body := b[0], b[1:]

	switch value := v.(type) {
	case *string:
		if tag != simpleString {
			return errors.Errorf("type tag %d is not a string", tag)
		}
		*value = string(body)
	case *map[string]string:
		if tag != simpleMap {
			return errors.Errorf("type tag %d is not a map", tag)
		}
		m, err := decodeMap(body)
		if err != nil {
			return err
		}
		*value = m
	case *[]byte:
		if tag != simpleBytes {
			return errors.Errorf("type tag %d is not bytes", tag)
		}
		data, err := decodeBytes(body)
		if err != nil {
			return err
		}
		*value = data
	default:
		return errors.Wrapf(types.ErrInvalidArgument, "simple serializer does not support %T", v)
	}
	return nil
}

func encodeString(s string, buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, int32(len(s)))
	buf.WriteString(s)
}

// encodeMap writes key/value pairs ordered by key, so equal maps encode equally.
func encodeMap(m map[string]string, buf *bytes.Buffer) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		encodeString(k, buf)
		encodeString(m[k], buf)
	}
}

func encodeBytes(b []byte, buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, int32(len(b)))
	buf.Write(b)
}

func readString(buf *bytes.Reader) (string, error) {
	var l int32
	if err := binary.Read(buf, binary.BigEndian, &l); err != nil {
		return "", err
	}
	if l < 0 || int(l) > buf.Len() {
		return "", errors.Errorf("length %d out of range", l)
	}
	b := make([]byte, l)
	buf.Read(b)
	return string(b), nil
}

func decodeMap(b []byte) (map[string]string, error) {
	m := make(map[string]string)
	buf := bytes.NewReader(b)
	for buf.Len() > 0 {
		key, err := readString(buf)
		if err != nil {
			return nil, errors.Wrap(err, "map key")
		}
		value, err := readString(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "map value of %q", key)
		}
		m[key] = value
	}
	return m, nil
}

func decodeBytes(b []byte) ([]byte, error) {
	buf := bytes.NewReader(b)
	s, err := readString(buf)
	if err != nil {
		return nil, err
	}
	if buf.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes", buf.Len())
	}
	return []byte(s), nil
}
