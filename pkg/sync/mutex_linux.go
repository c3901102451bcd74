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

package sync

import (
	"os"

	"golang.org/x/sys/unix"
)

var pid = uint64(os.Getpid())

// currentOwner identifies the calling OS thread.
func currentOwner() uint64 {
	return pid<<32 | uint64(uint32(unix.Gettid()))
}

// ownerAlive probes the owner thread with a null signal.
func ownerAlive(owner uint64) bool {
	p, t := splitOwner(owner)
	return unix.Tgkill(p, t, 0) != unix.ESRCH
}
