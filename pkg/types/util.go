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
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ValidateName checks a segment name before any OS object is touched.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidArgument, "name is empty")
	}
	if len(name) > MaxNameLength {
		return errors.Wrapf(ErrInvalidArgument, "name length %d exceeds %d", len(name), MaxNameLength)
	}
	if strings.ContainsAny(name, "/\x00") {
		return errors.Wrapf(ErrInvalidArgument, "name %q contains a path separator or NUL", name)
	}
	return nil
}

// SegmentPath returns the mapping file of the named segment.
func SegmentPath(dir, name string) string {
	return filepath.Join(shmDir(dir), SegmentPrefix+name)
}

// MutexPath returns the lock file paired with the named segment.
func MutexPath(dir, name string) string {
	return filepath.Join(shmDir(dir), SegmentPrefix+name+MutexSuffix)
}

func shmDir(dir string) string {
	if dir == "" {
		return DefaultShmDir
	}
	return dir
}
