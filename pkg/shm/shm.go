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
	"fmt"
	"os"
)

// MlockEnabled pins mapped pages with mlock(2) to avoid I/O page faults.
var MlockEnabled = false

// checkConsistency rejects an existing file of another size. An empty file
// is still being set up and may take any size.
func checkConsistency(path string, size int) error {
	if fi, err := os.Stat(path); err == nil {
		if fi.Size() != 0 && fi.Size() != int64(size) {
			return fmt.Errorf("mmap target path %s exists and its size %d mismatch %d", path, fi.Size(), size)
		}
	}
	return nil
}

// Free unmaps the span and removes its backing file.
func Free(span *ShmSpan) error {
	if err := Clear(span.name); err != nil && !os.IsNotExist(err) {
		span.Close()
		return err
	}
	return span.Close()
}

// Clear removes the backing file of a named mapping.
func Clear(path string) error {
	return os.Remove(path)
}
