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
	"sort"
	"sync"

	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/types"
)

// DefaultName is the serializer used when none is configured.
const DefaultName = "json"

// MaxNameLength is the room a serializer name has in a segment header.
const MaxNameLength = 16

//go:generate mockgen -source=serialize.go -destination=../mock/serialize.go -package=mock

// Serializer converts values to and from the bytes stored in a segment.
type Serializer interface {
	// Name identifies the encoding, it is recorded next to the payload.
	Name() string

	Serialize(v interface{}) ([]byte, error)

	// Deserialize decodes b into v, which must be a non-nil pointer.
	Deserialize(b []byte, v interface{}) error
}

var (
	mux         sync.RWMutex
	serializers = map[string]Serializer{}
)

func init() {
	Register(JSON)
	Register(Hessian)
	Register(Protobuf)
	Register(Simple)
}

// Register adds s to the registry, replacing any serializer of the same name.
func Register(s Serializer) error {
	name := s.Name()
	if name == "" || len(name) > MaxNameLength {
		return errors.Wrapf(types.ErrInvalidArgument, "serializer name %q", name)
	}
	mux.Lock()
	defer mux.Unlock()
	serializers[name] = s
	return nil
}

// Get returns the serializer registered under name. An empty name selects
// the default one.
func Get(name string) (Serializer, error) {
	if name == "" {
		name = DefaultName
	}
	mux.RLock()
	defer mux.RUnlock()
	if s, ok := serializers[name]; ok {
		return s, nil
	}
	return nil, errors.Wrapf(types.ErrInvalidArgument, "unknown serializer %q", name)
}

// Names lists the registered serializers in order.
func Names() []string {
	mux.RLock()
	defer mux.RUnlock()
	names := make([]string, 0, len(serializers))
	for name := range serializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkTarget(v interface{}) error {
	if v == nil {
		return errors.Wrapf(types.ErrInvalidArgument, "deserialize into nil")
	}
	return nil
}
