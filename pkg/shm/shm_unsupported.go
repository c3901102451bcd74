//go:build !linux
// +build !linux

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

	"mosn.io/shmseg/pkg/types"
)

// Alloc is not supported on this platform
func Alloc(_ string, _ int) (*ShmSpan, error) {
	return nil, types.ErrUnsupportedPlatform
}

// Attach is not supported on this platform
func Attach(_ string) (*ShmSpan, error) {
	return nil, types.ErrUnsupportedPlatform
}

// Map is not supported on this platform
func Map(f *os.File, _ int) (*ShmSpan, error) {
	f.Close()
	return nil, types.ErrUnsupportedPlatform
}

// Close is not supported on this platform
func (s *ShmSpan) Close() error {
	return types.ErrUnsupportedPlatform
}

// LockExclusive is not supported on this platform
func LockExclusive(_ *os.File, _ bool) error {
	return types.ErrUnsupportedPlatform
}

// LockShared is not supported on this platform
func LockShared(_ *os.File, _ bool) error {
	return types.ErrUnsupportedPlatform
}

// Unlock is not supported on this platform
func Unlock(_ *os.File) error {
	return types.ErrUnsupportedPlatform
}

// Unlinked is not supported on this platform
func Unlinked(_ *os.File) (bool, error) {
	return false, types.ErrUnsupportedPlatform
}
