//go:build linux
// +build linux

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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"mosn.io/shmseg/pkg/log"
)

// Alloc maps a named file of exactly size bytes, creating it if needed.
// An existing file of another size is rejected.
func Alloc(path string, size int) (*ShmSpan, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid mmap size %d", size)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	// check consistency
	if err := checkConsistency(path, size); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}

	return Map(f, size)
}

// Attach maps an existing named file with its current size.
func Attach(path string) (*ShmSpan, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, errors.Errorf("mmap target path %s is empty", path)
	}

	return Map(f, int(fi.Size()))
}

// Map maps size bytes of an open file. The span takes ownership of f,
// also when mapping fails.
func Map(f *os.File, size int) (*ShmSpan, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, os.NewSyscallError("mmap", err)
	}

	if MlockEnabled {
		// lock mmap data to avoid I/O page fault
		if err := unix.Mlock(data); err != nil {
			log.DefaultLogger.Warnf("[shm] failed to mlock memory from mmap, please check the RLIMIT_MEMLOCK:%s", err)
		}
	}

	return NewShmSpan(f.Name(), f, data), nil
}

// Close unmaps the span and closes its file. Flocks held through the file
// are dropped by the kernel.
func (s *ShmSpan) Close() error {
	s.Lock()
	defer s.Unlock()

	var err error
	if s.origin != nil {
		err = unix.Munmap(s.origin)
		s.origin = nil
		s.data = 0
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}

// LockExclusive takes an exclusive flock on f.
func LockExclusive(f *os.File, nonblock bool) error {
	how := unix.LOCK_EX
	if nonblock {
		how |= unix.LOCK_NB
	}
	return flock(f, how)
}

// LockShared takes a shared flock on f.
func LockShared(f *os.File, nonblock bool) error {
	how := unix.LOCK_SH
	if nonblock {
		how |= unix.LOCK_NB
	}
	return flock(f, how)
}

// Unlock drops any flock held on f through this open file description.
func Unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		switch err {
		case nil:
			return nil
		case unix.EINTR:
			continue
		case unix.EWOULDBLOCK:
			return ErrWouldBlock
		default:
			return os.NewSyscallError("flock", err)
		}
	}
}

// Unlinked reports whether the file behind f has been removed from its directory.
func Unlinked(f *os.File) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return false, os.NewSyscallError("fstat", err)
	}
	return st.Nlink == 0, nil
}
