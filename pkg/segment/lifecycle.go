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
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/shm"
	shmsync "mosn.io/shmseg/pkg/sync"
	"mosn.io/shmseg/pkg/types"
)

// Every open Segment holds a shared flock on its mapping file. A name is live
// while anybody holds that flock, and the kernel drops it when a process
// dies, so a leftover file of a crashed creator is told apart from a segment
// in use without any bookkeeping.
//
// Create, Attach, Close and Remove of one name are serialized by an exclusive
// flock on the lock file of the name, the lifecycle guard.

// Create allocates the named segment with room for capacity payload bytes and
// stores initialValue in it. The name must not be used by a live segment, a
// leftover of a dead one is reclaimed.
//
// With synchronized set the initial value is written while holding the
// segment lock.
func Create(name string, initialValue interface{}, capacity uint64, synchronized bool, opts ...Option) (*Segment, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	if capacity == 0 || capacity > MaxCapacity {
		return nil, errors.Wrapf(types.ErrOutOfRange, "capacity %d of %s not in [1, %d]", capacity, name, MaxCapacity)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	data, err := o.serializer.Serialize(initialValue)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidArgument, "serialize initial value of %s: %v", name, err)
	}
	if uint64(len(data)) > capacity {
		return nil, errors.Wrapf(types.ErrCapacityExceeded, "initial value of %s is %d bytes, capacity %d", name, len(data), capacity)
	}

	guard, err := lockLifecycle(types.MutexPath(o.dir, name), true, o.perm)
	if err != nil {
		return nil, osError(err, name)
	}
	defer unlockLifecycle(guard)

	s := newSegment(name, Creator, synchronized, o)
	if err := s.create(capacity, o.perm); err != nil {
		s.release()
		return nil, err
	}

	var g *shmsync.Guard
	if synchronized {
		// the lock was just reset, nobody else can hold it
		if g, err = s.lock.Acquire(types.Infinite); err != nil {
			s.release()
			return nil, err
		}
	}
	s.header.store(s.payload, data, s.serializer.Name())
	if g != nil {
		if err := g.Release(); err != nil {
			s.release()
			return nil, err
		}
	}

	log.DefaultLogger.Infof("[segment] created %s, capacity %d, serializer %s", s.name, s.capacity, s.serializer.Name())
	return s, nil
}

// create is called with the lifecycle guard held.
func (s *Segment) create(capacity uint64, perm os.FileMode) error {
	path := types.SegmentPath(s.dir, s.name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return osError(err, s.name)
	}
	if err := shm.LockExclusive(f, true); err != nil {
		f.Close()
		if err == shm.ErrWouldBlock {
			return errors.Wrapf(types.ErrSegmentExists, "%s", s.name)
		}
		return err
	}

	// nobody uses the name, start from zeroed memory
	size := int64(headerSize + capacity)
	if err := f.Truncate(0); err != nil {
		f.Close()
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	span, err := shm.Map(f, int(size))
	if err != nil {
		return err
	}
	if err := s.mapped(span); err != nil {
		return err
	}
	s.header.init(capacity)

	lock, err := shmsync.CreateMutex(s.name, s.dir)
	if err != nil {
		return err
	}
	lock.Reset()
	s.lock = lock

	// keep the name live, others may attach once the guard is gone
	return shm.LockShared(span.File(), false)
}

// Attach opens the live segment of the given name. A missing name, or one
// left over by processes that are all gone, fails with
// types.ErrSegmentNotFound.
//
// With synchronized set the segment header is validated again while holding
// the segment lock. That blocks while another thread holds the lock, for at
// most the WithLockTimeout duration, types.Infinite by default. A timeout
// fails with types.ErrLockTimeout. When the lock turns out to be abandoned the
// segment is returned together with an error matching types.ErrAbandonedLock,
// and no later AcquireLock reports it again.
func Attach(name string, synchronized bool, opts ...Option) (*Segment, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	s := newSegment(name, Attacher, synchronized, o)
	if err := s.attachLocked(); err != nil {
		return nil, err
	}

	var abandoned error
	if synchronized {
		start := time.Now()
		g, err := s.lock.Acquire(o.lockTimeout)
		s.observeAcquire(start, g, err)
		if g == nil {
			s.Close()
			return nil, err
		}
		abandoned = err
		verr := s.header.validate(headerSize + s.capacity)
		rerr := g.Release()
		if verr != nil {
			s.Close()
			return nil, errors.Wrapf(types.ErrInvalidSegment, "%s: %v", name, verr)
		}
		if rerr != nil {
			s.Close()
			return nil, rerr
		}
	}

	log.DefaultLogger.Infof("[segment] attached %s, capacity %d", s.name, s.capacity)
	return s, abandoned
}

func (s *Segment) attachLocked() error {
	guard, err := lockLifecycle(types.MutexPath(s.dir, s.name), false, 0)
	if err != nil {
		return osError(err, s.name)
	}
	defer unlockLifecycle(guard)

	if err := s.attach(); err != nil {
		s.release()
		return err
	}
	atomic.AddUint32(&s.header.attached, 1)
	s.attached = true
	return nil
}

// attach is called with the lifecycle guard held.
func (s *Segment) attach() error {
	path := types.SegmentPath(s.dir, s.name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return osError(err, s.name)
	}

	switch err := shm.LockExclusive(f, true); err {
	case nil:
		// nobody holds the name, it is a leftover
		f.Close()
		return errors.Wrapf(types.ErrSegmentNotFound, "%s is not in use", s.name)
	case shm.ErrWouldBlock:
	default:
		f.Close()
		return err
	}
	if err := shm.LockShared(f, false); err != nil {
		f.Close()
		return err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if uint64(fi.Size()) <= headerSize {
		f.Close()
		return errors.Wrapf(types.ErrInvalidSegment, "%s has size %d", s.name, fi.Size())
	}
	span, err := shm.Map(f, int(fi.Size()))
	if err != nil {
		return err
	}
	if err := s.mapped(span); err != nil {
		return err
	}
	if err := s.header.validate(uint64(fi.Size())); err != nil {
		return errors.Wrapf(types.ErrInvalidSegment, "%s: %v", s.name, err)
	}

	lock, err := shmsync.OpenMutex(s.name, s.dir)
	if err != nil {
		return err
	}
	s.lock = lock
	return nil
}

// Close releases the handles of s. It is safe to call more than once.
//
// A creator that finds no other live handle removes the shared objects,
// otherwise it marks the segment release pending and leaves them to the
// others. An attacher never removes anything.
func (s *Segment) Close() error {
	if !s.closed.CAS(false, true) {
		return nil
	}

	guard, err := lockLifecycle(types.MutexPath(s.dir, s.name), false, 0)
	if err == nil {
		defer unlockLifecycle(guard)
	} else {
		log.DefaultLogger.Warnf("[segment] close %s without lifecycle guard: %v", s.name, err)
	}
	return s.release()
}

// release is called with the lifecycle guard held.
func (s *Segment) release() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	var result error
	if s.lock != nil {
		if err := s.lock.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.lock = nil
	}
	if s.span == nil {
		return result
	}

	f := s.span.File()
	if s.attached {
		atomic.AddUint32(&s.header.attached, ^uint32(0))
		s.attached = false
	}
	if err := shm.Unlock(f); err != nil {
		result = multierror.Append(result, err)
	}

	last := false
	if s.mode == Creator && s.header != nil {
		if err := shm.LockExclusive(f, true); err == nil {
			last = true
		} else {
			s.header.setFlag(flagReleasePending)
			log.DefaultLogger.Infof("[segment] %s still in use, release pending", s.name)
		}
	}

	if last {
		// unlinks the mapping file and unmaps it
		if err := shm.Free(s.span); err != nil {
			result = multierror.Append(result, err)
		}
		if err := shm.Clear(types.MutexPath(s.dir, s.name)); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
		log.DefaultLogger.Infof("[segment] removed %s", s.name)
	} else if err := s.span.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.span = nil
	s.header = nil
	s.payload = nil
	return result
}

// Remove deletes the objects of a segment that no process uses any more,
// such as the leftovers of crashed processes or attachers that outlived
// their creator. A live segment fails with types.ErrSegmentInUse.
func Remove(name string, opts ...Option) error {
	if err := types.ValidateName(name); err != nil {
		return err
	}
	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	guard, err := lockLifecycle(types.MutexPath(o.dir, name), false, 0)
	switch {
	case err == nil:
		defer unlockLifecycle(guard)
	case os.IsNotExist(err):
		// a lock file never created or already gone, the mapping may remain
	default:
		return osError(err, name)
	}

	f, err := os.OpenFile(types.SegmentPath(o.dir, name), os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) && guard != nil {
			return removeObjects(o.dir, name)
		}
		return osError(err, name)
	}
	defer f.Close()

	if err := shm.LockExclusive(f, true); err != nil {
		if err == shm.ErrWouldBlock {
			return errors.Wrapf(types.ErrSegmentInUse, "%s", name)
		}
		return err
	}
	if err := removeObjects(o.dir, name); err != nil {
		return err
	}
	log.DefaultLogger.Infof("[segment] removed leftover %s", name)
	return nil
}

func removeObjects(dir, name string) error {
	var result error
	for _, path := range []string{types.SegmentPath(dir, name), types.MutexPath(dir, name)} {
		if err := shm.Clear(path); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// lockLifecycle takes the lifecycle guard of the lock file at path. A file
// removed while waiting is opened again.
func lockLifecycle(path string, create bool, perm os.FileMode) (*os.File, error) {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	for {
		f, err := os.OpenFile(path, flag, perm)
		if err != nil {
			return nil, err
		}
		if err := shm.LockExclusive(f, false); err != nil {
			f.Close()
			return nil, err
		}
		unlinked, err := shm.Unlinked(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !unlinked {
			return f, nil
		}
		f.Close()
	}
}

func unlockLifecycle(f *os.File) {
	shm.Unlock(f)
	f.Close()
}

// osError translates errors of opening the objects of a segment.
func osError(err error, name string) error {
	switch {
	case os.IsNotExist(err):
		return errors.Wrapf(types.ErrSegmentNotFound, "%s", name)
	default:
		return errors.Wrapf(err, "%s", name)
	}
}
