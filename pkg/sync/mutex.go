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

package sync

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	uatomic "go.uber.org/atomic"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/shm"
	"mosn.io/shmseg/pkg/types"
)

const (
	mutexMagic   uint32 = 0x53484d58 // "SHMX"
	mutexVersion uint32 = 1

	minBackoff = 50 * time.Microsecond
	maxBackoff = 5 * time.Millisecond
)

var mutexStateSize = int(unsafe.Sizeof(mutexState{}))

// mutexState is the memory layout of a lock file.
//
// This struct should never be instantiated.
type mutexState struct {
	magic     uint32 // 4
	version   uint32 // 4
	owner     uint64 // 8, pid<<32 | tid, 0 when free
	depth     uint32 // 4
	abandoned uint32 // 4
	acquired  uint64 // 8

	padding [32]byte
}

// NamedMutex is a re-entrant mutex shared by every process that opens the
// same name. Ownership belongs to an OS thread: a goroutine holding the mutex
// is wired to its thread until it releases the last level, and a thread that
// dies while holding it leaves the mutex abandoned.
type NamedMutex struct {
	name string
	path string

	mux    sync.RWMutex
	span   *shm.ShmSpan
	state  *mutexState
	holder uint64 // thread holding levels through this handle
	held   uint32 // levels held through this handle
}

// MutexStat is a snapshot of the shared lock state.
type MutexStat struct {
	Name      string
	Path      string
	OwnerPid  int
	OwnerTid  int
	Depth     uint32
	Abandoned uint32
	Acquired  uint64
}

// CreateMutex opens the named mutex, creating it if absent.
func CreateMutex(name, dir string) (*NamedMutex, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	path := types.MutexPath(dir, name)

	span, err := shm.Alloc(path, mutexStateSize)
	if err != nil {
		return nil, errors.Wrapf(types.ErrLockUnavailable, "create %s: %v", path, err)
	}
	m, err := newNamedMutex(name, path, span, true)
	if err != nil {
		return nil, err
	}
	log.DefaultLogger.Debugf("[namedmutex] created %s", path)
	return m, nil
}

// OpenMutex opens an existing named mutex.
func OpenMutex(name, dir string) (*NamedMutex, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	path := types.MutexPath(dir, name)

	span, err := shm.Attach(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(types.ErrLockUnavailable, "open %s", path)
		}
		return nil, errors.Wrapf(types.ErrLockUnavailable, "open %s: %v", path, err)
	}
	if span.Size() != mutexStateSize {
		span.Close()
		return nil, errors.Wrapf(types.ErrLockUnavailable, "%s has size %d, not a named mutex", path, span.Size())
	}
	m, err := newNamedMutex(name, path, span, false)
	if err != nil {
		return nil, err
	}
	log.DefaultLogger.Debugf("[namedmutex] opened %s", path)
	return m, nil
}

// RemoveMutex unlinks the named mutex. Open handles keep working.
func RemoveMutex(name, dir string) error {
	if err := types.ValidateName(name); err != nil {
		return err
	}
	path := types.MutexPath(dir, name)
	if err := shm.Clear(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(types.ErrLockUnavailable, "remove %s", path)
		}
		return err
	}
	return nil
}

func newNamedMutex(name, path string, span *shm.ShmSpan, create bool) (*NamedMutex, error) {
	block, err := span.Alloc(mutexStateSize)
	if err != nil {
		span.Close()
		return nil, err
	}
	state := (*mutexState)(unsafe.Pointer(&block[0]))
	if create && atomic.CompareAndSwapUint32(&state.magic, 0, mutexMagic) {
		atomic.StoreUint32(&state.version, mutexVersion)
	}
	if atomic.LoadUint32(&state.magic) != mutexMagic {
		span.Close()
		return nil, errors.Wrapf(types.ErrLockUnavailable, "%s is not a named mutex", path)
	}
	return &NamedMutex{
		name:  name,
		path:  path,
		span:  span,
		state: state,
	}, nil
}

func (m *NamedMutex) Name() string {
	return m.name
}

func (m *NamedMutex) Path() string {
	return m.path
}

// Acquire blocks until the calling thread owns the mutex or timeout elapses.
// types.Infinite waits forever and a zero timeout tries exactly once.
//
// When the previous owner died while holding the mutex, the returned guard is
// valid and the error is types.ErrAbandonedLock. Only the acquirer that takes
// the mutex over sees it.
func (m *NamedMutex) Acquire(timeout time.Duration) (*Guard, error) {
	if timeout < 0 {
		return m.AcquireContext(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.AcquireContext(ctx)
}

// TryAcquire acquires the mutex only if that does not require waiting.
func (m *NamedMutex) TryAcquire() (*Guard, error) {
	return m.Acquire(0)
}

// AcquireContext is Acquire bounded by ctx. An expired deadline is reported
// as types.ErrLockTimeout, a cancellation as context.Canceled.
func (m *NamedMutex) AcquireContext(ctx context.Context) (*Guard, error) {
	runtime.LockOSThread()
	me := currentOwner()

	var timer *time.Timer
	backoff := minBackoff
	for {
		prev, ok, err := m.tryAcquire(me)
		if err != nil {
			runtime.UnlockOSThread()
			return nil, err
		}
		if ok {
			guard := &Guard{m: m, owner: me}
			if prev != 0 {
				log.DefaultLogger.Alertf(types.AlertAbandonedLock,
					"[namedmutex] %s abandoned by %s, taken over by %s", m.path, ownerString(prev), ownerString(me))
				return guard, errors.Wrapf(types.ErrAbandonedLock, "%s previously owned by %s", m.name, ownerString(prev))
			}
			return guard, nil
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
			defer timer.Stop()
		} else {
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			runtime.UnlockOSThread()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, errors.Wrapf(types.ErrLockTimeout, "%s", m.name)
			}
			return nil, errors.Wrapf(ctx.Err(), "acquire %s", m.name)
		case <-timer.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// tryAcquire makes one attempt. prev is the dead owner taken over, if any.
func (m *NamedMutex) tryAcquire(me uint64) (prev uint64, ok bool, err error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	s := m.state
	if s == nil {
		return 0, false, errors.Wrapf(types.ErrLockUnavailable, "%s is closed", m.name)
	}

	if atomic.CompareAndSwapUint64(&s.owner, 0, me) {
		atomic.StoreUint32(&s.depth, 1)
		m.acquired(me)
		return 0, true, nil
	}

	cur := atomic.LoadUint64(&s.owner)
	switch {
	case cur == me:
		atomic.AddUint32(&s.depth, 1)
		m.acquired(me)
		return 0, true, nil
	case cur != 0 && !ownerAlive(cur) && atomic.CompareAndSwapUint64(&s.owner, cur, me):
		atomic.StoreUint32(&s.depth, 1)
		atomic.AddUint32(&s.abandoned, 1)
		if atomic.LoadUint64(&m.holder) == cur {
			// the dead thread held its levels through this handle
			atomic.StoreUint32(&m.held, 0)
		}
		m.acquired(me)
		return cur, true, nil
	}
	return 0, false, nil
}

// acquired is called with mux read-locked by the thread that now owns the mutex
func (m *NamedMutex) acquired(me uint64) {
	atomic.AddUint64(&m.state.acquired, 1)
	atomic.StoreUint64(&m.holder, me)
	atomic.AddUint32(&m.held, 1)
}

func (m *NamedMutex) release(g *Guard) error {
	m.mux.RLock()
	defer m.mux.RUnlock()

	me := currentOwner()
	s := m.state
	if s == nil {
		// Close already gave up the levels of this handle
		if me == g.owner {
			runtime.UnlockOSThread()
			return nil
		}
		return errors.Wrapf(types.ErrNotOwner, "%s released by %s, acquired by %s", m.name, ownerString(me), ownerString(g.owner))
	}

	cur := atomic.LoadUint64(&s.owner)
	if cur != me || me != g.owner {
		return errors.Wrapf(types.ErrNotOwner, "%s owned by %s, released by %s", m.name, ownerString(cur), ownerString(me))
	}
	atomic.AddUint32(&m.held, ^uint32(0))
	if atomic.AddUint32(&s.depth, ^uint32(0)) == 0 {
		atomic.StoreUint64(&s.owner, 0)
	}
	runtime.UnlockOSThread()
	return nil
}

// Owned reports whether the calling thread owns the mutex. It is only
// meaningful while the caller holds a guard, since that pins its thread.
func (m *NamedMutex) Owned() bool {
	m.mux.RLock()
	defer m.mux.RUnlock()

	if m.state == nil {
		return false
	}
	return atomic.LoadUint64(&m.state.owner) == currentOwner()
}

// Reset clears the ownership record. Only a creator that knows no other
// process uses the mutex may call it.
func (m *NamedMutex) Reset() {
	m.mux.RLock()
	defer m.mux.RUnlock()

	if m.state == nil {
		return
	}
	atomic.StoreUint32(&m.state.depth, 0)
	atomic.StoreUint64(&m.state.owner, 0)
	atomic.StoreUint32(&m.held, 0)
}

func (m *NamedMutex) Stat() MutexStat {
	m.mux.RLock()
	defer m.mux.RUnlock()

	stat := MutexStat{
		Name: m.name,
		Path: m.path,
	}
	if m.state == nil {
		return stat
	}
	owner := atomic.LoadUint64(&m.state.owner)
	stat.OwnerPid, stat.OwnerTid = splitOwner(owner)
	stat.Depth = atomic.LoadUint32(&m.state.depth)
	stat.Abandoned = atomic.LoadUint32(&m.state.abandoned)
	stat.Acquired = atomic.LoadUint64(&m.state.acquired)
	return stat
}

// Close unmaps the mutex. Levels still held through this handle are given up
// so that other handles do not wait for a thread that will never release.
func (m *NamedMutex) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.span == nil {
		return nil
	}

	if held := atomic.LoadUint32(&m.held); held > 0 {
		holder := atomic.LoadUint64(&m.holder)
		log.DefaultLogger.Warnf("[namedmutex] %s closed with %d level(s) held by %s", m.path, held, ownerString(holder))
		if atomic.LoadUint64(&m.state.owner) == holder {
			depth := atomic.LoadUint32(&m.state.depth)
			if depth <= held {
				atomic.StoreUint32(&m.state.depth, 0)
				atomic.StoreUint64(&m.state.owner, 0)
			} else {
				atomic.StoreUint32(&m.state.depth, depth-held)
			}
		}
		atomic.StoreUint32(&m.held, 0)
	}

	err := m.span.Close()
	m.span = nil
	m.state = nil
	return err
}

// Guard represents one level of ownership of a NamedMutex.
type Guard struct {
	m        *NamedMutex
	owner    uint64
	released uatomic.Bool
}

// Release gives up the level represented by the guard. It must run on the
// goroutine that acquired it, otherwise types.ErrNotOwner is returned.
// Releasing a guard twice is a no-op.
func (g *Guard) Release() error {
	if g == nil || g.released.Load() {
		return nil
	}
	if err := g.m.release(g); err != nil {
		return err
	}
	g.released.Store(true)
	return nil
}

func splitOwner(owner uint64) (pid, tid int) {
	return int(owner >> 32), int(uint32(owner))
}

func ownerString(owner uint64) string {
	if owner == 0 {
		return "nobody"
	}
	pid, tid := splitOwner(owner)
	return fmt.Sprintf("pid %d tid %d", pid, tid)
}
