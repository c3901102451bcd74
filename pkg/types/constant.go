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

package types

import (
	"errors"
	"time"
)

// Object naming in the shm directory.
// The mapping of segment "foo" lives at {ShmDir}/shmseg.foo and its lock at
// {ShmDir}/shmseg.foo.mutex, so the two files always travel together.
const (
	SegmentPrefix = "shmseg."
	MutexSuffix   = ".mutex"

	// maxFileName is NAME_MAX of the tmpfs backing the shm directory
	maxFileName = 255

	// MaxNameLength is the longest segment name whose derived object names
	// still fit into a single path component.
	MaxNameLength = maxFileName - len(SegmentPrefix) - len(MutexSuffix)
)

// DefaultShmDir is where named objects are created unless configured otherwise.
const DefaultShmDir = "/dev/shm"

// Infinite makes an acquire wait until the lock is obtained.
const Infinite time.Duration = -1

// Error messages
const (
	InvalidArgumentException   = "invalid argument"
	OutOfRangeException        = "argument out of range"
	SegmentNotFoundException   = "shared memory segment not found"
	SegmentExistsException     = "shared memory segment already exists"
	SegmentInUseException      = "shared memory segment is in use"
	InvalidSegmentException    = "not a shared memory segment"
	SegmentClosedException     = "shared memory segment is closed"
	CapacityExceededException  = "serialized value exceeds segment capacity"
	DeserializeException       = "deserialize exception occurs"
	LockTimeoutException       = "timed out waiting for named lock"
	AbandonedLockException     = "named lock was abandoned by its previous owner"
	NotOwnerException          = "named lock is not owned by the calling thread"
	LockUnavailableException   = "named lock does not exist"
	UnsupportedPlatformMessage = "named shared memory is not supported on this platform"
)

// Errors
var (
	ErrInvalidArgument     = errors.New(InvalidArgumentException)
	ErrOutOfRange          = errors.New(OutOfRangeException)
	ErrSegmentNotFound     = errors.New(SegmentNotFoundException)
	ErrSegmentExists       = errors.New(SegmentExistsException)
	ErrSegmentInUse        = errors.New(SegmentInUseException)
	ErrInvalidSegment      = errors.New(InvalidSegmentException)
	ErrSegmentClosed       = errors.New(SegmentClosedException)
	ErrCapacityExceeded    = errors.New(CapacityExceededException)
	ErrDeserialization     = errors.New(DeserializeException)
	ErrLockTimeout         = errors.New(LockTimeoutException)
	ErrAbandonedLock       = errors.New(AbandonedLockException)
	ErrNotOwner            = errors.New(NotOwnerException)
	ErrLockUnavailable     = errors.New(LockUnavailableException)
	ErrUnsupportedPlatform = errors.New(UnsupportedPlatformMessage)
)

// Alert keys used with ErrorLogger.Alertf
const (
	AlertAbandonedLock = "shmseg.abandoned_lock"
	AlertCorruptData   = "shmseg.corrupt_data"
	AlertWorkerPanic   = "shmseg.worker_panic"
)
