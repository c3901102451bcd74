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

package shm

import (
	"errors"
	"os"
	"sync"
	"unsafe"
)

var (
	errNotEnough = errors.New("span capacity is not enough")

	// ErrWouldBlock is returned by non-blocking flock calls on a busy file.
	ErrWouldBlock = errors.New("flock would block")
)

// ShmSpan is one mapping of a named shared memory file.
// The file stays open for the lifetime of the span so that flock based
// liveness can be attached to it.
type ShmSpan struct {
	sync.Mutex
	name   string
	file   *os.File
	origin []byte

	data   uintptr
	offset int
	size   int
}

func NewShmSpan(name string, file *os.File, data []byte) *ShmSpan {
	return &ShmSpan{
		name:   name,
		file:   file,
		origin: data,
		data:   uintptr(unsafe.Pointer(&data[0])),
		size:   len(data),
	}
}

// Alloc carves the next size bytes out of the span.
func (s *ShmSpan) Alloc(size int) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if size <= 0 || s.offset+size > s.size {
		return nil, errNotEnough
	}

	block := s.origin[s.offset : s.offset+size : s.offset+size]
	s.offset += size
	return block, nil
}

func (s *ShmSpan) Name() string {
	return s.name
}

func (s *ShmSpan) File() *os.File {
	return s.file
}

func (s *ShmSpan) Origin() []byte {
	return s.origin
}

func (s *ShmSpan) Data() uintptr {
	return s.data
}

func (s *ShmSpan) Size() int {
	return s.size
}
