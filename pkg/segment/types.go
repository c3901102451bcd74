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
	"time"

	"github.com/pkg/errors"

	"mosn.io/shmseg/pkg/serialize"
	shmsync "mosn.io/shmseg/pkg/sync"
	"mosn.io/shmseg/pkg/types"
)

const (
	// DefaultLockTimeout is used by AcquireLock callers that have no deadline.
	DefaultLockTimeout = types.Infinite

	// MaxCapacity bounds the payload of one segment.
	MaxCapacity uint64 = 1 << 40

	defaultPerm os.FileMode = 0644
)

// Mode tells how a Segment came to be, it decides what Close does with the
// shared objects.
type Mode int

const (
	// Creator allocated the mapping and may remove it on Close.
	Creator Mode = iota
	// Attacher opened an existing mapping and only detaches on Close.
	Attacher
)

func (m Mode) String() string {
	switch m {
	case Creator:
		return "creator"
	case Attacher:
		return "attacher"
	default:
		return "unknown"
	}
}

// Options configure where a segment lives and how values are encoded.
type Options struct {
	Dir         string
	Serializer  string
	Perm        os.FileMode
	LockTimeout time.Duration
}

type Option func(*Options)

// WithDir places the segment objects in dir instead of /dev/shm.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}

// WithSerializer selects a registered serializer by name.
func WithSerializer(name string) Option {
	return func(o *Options) {
		o.Serializer = name
	}
}

// WithPerm sets the permission bits of files created for the segment.
func WithPerm(perm os.FileMode) Option {
	return func(o *Options) {
		o.Perm = perm
	}
}

// WithLockTimeout bounds the wait for the segment lock of a synchronized
// Attach. types.Infinite, the default, waits until the lock is free.
func WithLockTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.LockTimeout = timeout
	}
}

type options struct {
	dir         string
	serializer  serialize.Serializer
	perm        os.FileMode
	lockTimeout time.Duration
}

func newOptions(opts []Option) (*options, error) {
	o := &Options{
		Dir:         types.DefaultShmDir,
		Perm:        defaultPerm,
		LockTimeout: types.Infinite,
	}
	for _, opt := range opts {
		opt(o)
	}
	s, err := serialize.Get(o.Serializer)
	if err != nil {
		return nil, err
	}
	if o.Dir == "" {
		o.Dir = types.DefaultShmDir
	}
	if o.Perm == 0 {
		o.Perm = defaultPerm
	}
	if o.Perm&^os.ModePerm != 0 {
		return nil, errors.Wrapf(types.ErrInvalidArgument, "permission %v", o.Perm)
	}
	return &options{
		dir:         o.Dir,
		serializer:  s,
		perm:        o.Perm,
		lockTimeout: o.LockTimeout,
	}, nil
}

// Stat is a snapshot of a segment and its lock.
type Stat struct {
	Name           string
	Path           string
	Mode           Mode
	Synchronized   bool
	Serializer     string
	Capacity       uint64
	Length         uint64
	Generation     uint64
	Codec          string
	Attached       uint32
	ReleasePending bool
	UpdatedAt      time.Time
	Writer         int
	Lock           shmsync.MutexStat
}
