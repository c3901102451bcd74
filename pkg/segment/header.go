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

package segment

import (
	"bytes"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/dchest/siphash"
	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/types"
)

const (
	segmentMagic   uint32 = 0x53484d53 // "SHMS"
	segmentVersion uint32 = 1

	flagReleasePending uint32 = 1 << 0

	codecSize = 16

	// checksum keys, fixed so that every process agrees
	sipKey0 uint64 = 0x7368_6d73_6567_0001
	sipKey1 uint64 = 0x7368_6d73_6567_0002
)

var headerSize = uint64(unsafe.Sizeof(header{}))

var (
	errEmpty   = errors.New("segment holds no value")
	errTorn    = errors.New("value changed while reading")
	errCorrupt = errors.New("checksum mismatch")
)

// header is the memory layout at the start of a mapping, the payload
// follows it.
//
// This struct should never be instantiated.
type header struct {
	magic      uint32 // 4
	version    uint32 // 4
	flags      uint32 // 4
	attached   uint32 // 4
	capacity   uint64 // 8
	length     uint64 // 8
	generation uint64 // 8, odd while a write is in progress
	checksum   uint64 // 8
	updated    int64  // 8, unix nano of the last write
	writer     uint64 // 8, pid of the last writer
	codec      [codecSize]byte

	padding [48]byte
}

func castHeader(block []byte) *header {
	return (*header)(unsafe.Pointer(&block[0]))
}

func (h *header) init(capacity uint64) {
	atomic.StoreUint32(&h.version, segmentVersion)
	atomic.StoreUint64(&h.capacity, capacity)
	atomic.StoreUint32(&h.magic, segmentMagic)
}

// validate checks the header of a mapping of size bytes.
func (h *header) validate(size uint64) error {
	if magic := atomic.LoadUint32(&h.magic); magic != segmentMagic {
		return errors.Errorf("bad magic %#x", magic)
	}
	if version := atomic.LoadUint32(&h.version); version != segmentVersion {
		return errors.Errorf("unsupported version %d", version)
	}
	if capacity := atomic.LoadUint64(&h.capacity); capacity == 0 || capacity+headerSize != size {
		return errors.Errorf("capacity %d does not match mapping size %d", capacity, size)
	}
	return nil
}

// store writes data into payload as one seqlock update.
func (h *header) store(payload, data []byte, codec string) {
	g := atomic.LoadUint64(&h.generation)
	if g&1 == 0 {
		g++
	} else {
		// left odd by a writer that died
		g += 2
	}
	atomic.StoreUint64(&h.generation, g)

	copy(payload, data)
	atomic.StoreUint64(&h.length, uint64(len(data)))
	atomic.StoreUint64(&h.checksum, checksum(data))
	atomic.StoreInt64(&h.updated, time.Now().UnixNano())
	atomic.StoreUint64(&h.writer, uint64(os.Getpid()))
	h.codec = [codecSize]byte{}
	copy(h.codec[:], codec)

	atomic.StoreUint64(&h.generation, g+1)
}

// load copies the value out of payload. It never waits for a writer, a
// concurrent write makes it fail with errTorn.
func (h *header) load(payload []byte) (data []byte, codec string, err error) {
	g := atomic.LoadUint64(&h.generation)
	if g == 0 {
		return nil, "", errEmpty
	}
	if g&1 == 1 {
		return nil, "", errTorn
	}

	n := atomic.LoadUint64(&h.length)
	if n > uint64(len(payload)) {
		return nil, "", errors.Errorf("length %d exceeds capacity %d", n, len(payload))
	}
	data = make([]byte, n)
	copy(data, payload[:n])
	sum := atomic.LoadUint64(&h.checksum)
	name := h.codec

	if atomic.LoadUint64(&h.generation) != g {
		return nil, "", errTorn
	}
	if checksum(data) != sum {
		return nil, "", errCorrupt
	}
	return data, string(bytes.TrimRight(name[:], "\x00")), nil
}

func (h *header) setFlag(flag uint32) {
	for {
		old := atomic.LoadUint32(&h.flags)
		if old&flag != 0 || atomic.CompareAndSwapUint32(&h.flags, old, old|flag) {
			return
		}
	}
}

func (h *header) hasFlag(flag uint32) bool {
	return atomic.LoadUint32(&h.flags)&flag != 0
}

func checksum(data []byte) uint64 {
	return siphash.Hash(sipKey0, sipKey1, data)
}

func wrapDeserialization(name string, err error) error {
	return errors.Wrapf(types.ErrDeserialization, "%s: %v", name, err)
}
