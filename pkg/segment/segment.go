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
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	uatomic "go.uber.org/atomic"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/metrics"
	"mosn.io/shmseg/pkg/serialize"
	"mosn.io/shmseg/pkg/shm"
	shmsync "mosn.io/shmseg/pkg/sync"
	"mosn.io/shmseg/pkg/types"
)

// Segment is one process's handle on a named block of shared memory that
// holds a single serialized value, together with the named lock guarding it.
//
// Data calls never take the lock. Callers that need a consistent view across
// processes wrap them in AcquireLock and Guard.Release.
type Segment struct {
	name         string
	dir          string
	mode         Mode
	synchronized bool
	serializer   serialize.Serializer

	mux      sync.Mutex
	closed   uatomic.Bool
	attached bool
	span     *shm.ShmSpan
	header   *header
	payload  []byte
	capacity uint64
	lock     *shmsync.NamedMutex

	stats types.Metrics
}

func newSegment(name string, mode Mode, synchronized bool, o *options) *Segment {
	return &Segment{
		name:         name,
		dir:          o.dir,
		mode:         mode,
		synchronized: synchronized,
		serializer:   o.serializer,
		stats:        metrics.NewSegmentStats(name),
	}
}

// mapped installs the mapping of span into s.
func (s *Segment) mapped(span *shm.ShmSpan) error {
	s.span = span
	block, err := span.Alloc(int(headerSize))
	if err != nil {
		return err
	}
	s.header = castHeader(block)
	s.payload = span.Origin()[headerSize:]
	s.capacity = uint64(len(s.payload))
	return nil
}

func (s *Segment) Name() string {
	return s.name
}

func (s *Segment) Mode() Mode {
	return s.mode
}

// IsSynchronized reports whether construction validated the segment while
// holding its lock.
func (s *Segment) IsSynchronized() bool {
	return s.synchronized
}

// Capacity is the largest serialized value the segment can hold.
func (s *Segment) Capacity() uint64 {
	return s.capacity
}

func (s *Segment) checkOpen() error {
	if s.closed.Load() {
		return errors.Wrapf(types.ErrSegmentClosed, "%s", s.name)
	}
	return nil
}

// AcquireLock takes the named lock of the segment. types.Infinite waits
// forever. An abandoned lock is returned with a valid guard and an error
// matching types.ErrAbandonedLock.
func (s *Segment) AcquireLock(timeout time.Duration) (*shmsync.Guard, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	g, err := s.lock.Acquire(timeout)
	s.observeAcquire(start, g, err)
	return g, err
}

// AcquireLockContext is AcquireLock bounded by ctx.
func (s *Segment) AcquireLockContext(ctx context.Context) (*shmsync.Guard, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	g, err := s.lock.AcquireContext(ctx)
	s.observeAcquire(start, g, err)
	return g, err
}

func (s *Segment) observeAcquire(start time.Time, g *shmsync.Guard, err error) {
	s.stats.Histogram(types.LockWaitUs).Update(time.Since(start).Microseconds())
	if g != nil {
		s.stats.Counter(types.LockAcquire).Inc(1)
	}
	switch {
	case errors.Is(err, types.ErrAbandonedLock):
		s.stats.Counter(types.LockAbandoned).Inc(1)
	case errors.Is(err, types.ErrLockTimeout):
		s.stats.Counter(types.LockTimeout).Inc(1)
	}
}

// SetData serializes v into the segment. A value larger than the capacity
// fails with types.ErrCapacityExceeded and leaves the stored value as it was.
func (s *Segment) SetData(v interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := s.serializer.Serialize(v)
	if err != nil {
		return errors.Wrapf(types.ErrInvalidArgument, "serialize %T for %s: %v", v, s.name, err)
	}
	return s.write(data, s.serializer.Name())
}

// WriteBytes stores b as the value without encoding it.
func (s *Segment) WriteBytes(b []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.write(b, "")
}

func (s *Segment) write(data []byte, codec string) error {
	if uint64(len(data)) > s.capacity {
		s.stats.Counter(types.DataOverflow).Inc(1)
		return errors.Wrapf(types.ErrCapacityExceeded, "%d bytes into %s of capacity %d", len(data), s.name, s.capacity)
	}
	s.header.store(s.payload, data, codec)
	s.stats.Counter(types.DataWrite).Inc(1)
	s.stats.Gauge(types.DataSize).Update(int64(len(data)))
	return nil
}

// GetData decodes the stored value into v, which must be a non-nil pointer.
// Any failure to produce a value, including a value written with another
// serializer or as another type, matches types.ErrDeserialization.
func (s *Segment) GetData(v interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, codec, err := s.read()
	if err != nil {
		return err
	}
	if codec != "" && codec != s.serializer.Name() {
		return errors.Wrapf(types.ErrDeserialization, "%s holds %s data, reading as %s", s.name, codec, s.serializer.Name())
	}
	if err := s.serializer.Deserialize(data, v); err != nil {
		if errors.Is(err, types.ErrInvalidArgument) {
			return err
		}
		return wrapDeserialization(s.name, err)
	}
	return nil
}

// ReadBytes returns a copy of the stored value without decoding it.
func (s *Segment) ReadBytes() ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	data, _, err := s.read()
	return data, err
}

func (s *Segment) read() ([]byte, string, error) {
	data, codec, err := s.header.load(s.payload)
	if err != nil {
		if err == errCorrupt {
			log.DefaultLogger.Alertf(types.AlertCorruptData, "[segment] %s: %v", s.name, err)
		}
		if err != errEmpty {
			s.stats.Counter(types.DataCorrupt).Inc(1)
		}
		return nil, "", wrapDeserialization(s.name, err)
	}
	s.stats.Counter(types.DataRead).Inc(1)
	return data, codec, nil
}

// Get decodes the value of s as a T. A pointer T gets a freshly allocated
// target, so that proto.Message types can be read as well.
func Get[T any](s *Segment) (T, error) {
	var v T
	if t := reflect.TypeOf(v); t != nil && t.Kind() == reflect.Ptr {
		v = reflect.New(t.Elem()).Interface().(T)
		err := s.GetData(v)
		return v, err
	}
	err := s.GetData(&v)
	return v, err
}

// Stat returns a snapshot of the segment.
func (s *Segment) Stat() (Stat, error) {
	if err := s.checkOpen(); err != nil {
		return Stat{}, err
	}
	h := s.header
	stat := Stat{
		Name:           s.name,
		Path:           types.SegmentPath(s.dir, s.name),
		Mode:           s.mode,
		Synchronized:   s.synchronized,
		Serializer:     s.serializer.Name(),
		Capacity:       s.capacity,
		Length:         atomic.LoadUint64(&h.length),
		Generation:     atomic.LoadUint64(&h.generation),
		Attached:       atomic.LoadUint32(&h.attached),
		ReleasePending: h.hasFlag(flagReleasePending),
		Writer:         int(atomic.LoadUint64(&h.writer)),
		Lock:           s.lock.Stat(),
	}
	if updated := atomic.LoadInt64(&h.updated); updated != 0 {
		stat.UpdatedAt = time.Unix(0, updated)
	}
	if _, codec, err := h.load(s.payload); err == nil {
		stat.Codec = codec
	}
	return stat, nil
}
