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

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"mosn.io/shmseg/pkg/metrics"
	"mosn.io/shmseg/pkg/segment"
	"mosn.io/shmseg/pkg/types"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	app := newApp()
	buf := &bytes.Buffer{}
	app.Writer = buf
	err := app.Run(append([]string{"shmseg", "--dir", dir}, args...))
	return buf.String(), err
}

func TestSerializerFlagUsage(t *testing.T) {
	var usage string
	for _, f := range newApp().Flags {
		if sf, ok := f.(cli.StringFlag); ok && sf.Name == "serializer, s" {
			usage = sf.Usage
		}
	}
	assert.Equal(t, "value serializer, hessian|json|protobuf|simple", usage)
}

func TestGetSet(t *testing.T) {
	dir := t.TempDir()
	s, err := segment.Create("cli", map[string]int{"a": 1}, 256, false, segment.WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	out, err := run(t, dir, "get", "--name", "cli")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, strings.TrimSpace(out))

	_, err = run(t, dir, "set", "--name", "cli", "--value", `{"b":[1,2]}`)
	require.NoError(t, err)

	out, err = run(t, dir, "get", "--name", "cli", "--raw")
	require.NoError(t, err)
	assert.Equal(t, `{"b":[1,2]}`, strings.TrimSpace(out))

	_, err = run(t, dir, "set", "--name", "cli", "--value", `{"b":`)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	_, err = run(t, dir, "set", "--name", "cli", "--value", `"`+strings.Repeat("x", 300)+`"`)
	assert.True(t, errors.Is(err, types.ErrCapacityExceeded), "%v", err)

	_, err = run(t, dir, "get", "--name", "absent")
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)
	_, err = run(t, dir, "get")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
}

func TestStatLock(t *testing.T) {
	dir := t.TempDir()
	s, err := segment.Create("inspect", "v", 64, false, segment.WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	out, err := run(t, dir, "stat", "--name", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "inspect"`)
	assert.Contains(t, out, `"Capacity": 64`)

	out, err = run(t, dir, "lock", "--name", "inspect", "--hold", "10ms")
	require.NoError(t, err)
	assert.Equal(t, "locked inspect\n", out)
}

func TestCreateHold(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "create", "--name", "held", "--value", `[1,2,3]`, "--capacity", "1KB", "--hold", "10ms")
	require.NoError(t, err)
	assert.Equal(t, "created held, capacity 1KB\n", out)

	// closed by its creator when the hold ended
	_, err = segment.Attach("held", false, segment.WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)

	_, err = run(t, dir, "create", "--name", "held", "--capacity", "lots", "--hold", "10ms")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	a, err := segment.Create("stale", "v", 64, false, segment.WithDir(dir))
	require.NoError(t, err)
	b, err := segment.Attach("stale", false, segment.WithDir(dir))
	require.NoError(t, err)

	_, err = run(t, dir, "remove", "--name", "stale")
	assert.True(t, errors.Is(err, types.ErrSegmentInUse), "%v", err)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	out, err := run(t, dir, "remove", "--name", "stale")
	require.NoError(t, err)
	assert.Equal(t, "removed stale\n", out)
}

func TestStress(t *testing.T) {
	dir := t.TempDir()
	metrics.NewSegmentStats("unrelated").Counter(types.LockAcquire).Inc(1)

	out, err := run(t, dir, "stress", "--name", "counter", "--workers", "4", "--iterations", "50", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "200 increments")
	assert.Contains(t, out, "counter 0 -> 200")
	assert.Contains(t, out, `"lock.acquire"`)
	assert.Contains(t, out, "segment.counter")
	assert.NotContains(t, out, "unrelated")

	_, err = run(t, dir, "stress", "--name", "counter", "--workers", "0")
	assert.True(t, errors.Is(err, types.ErrOutOfRange), "%v", err)
}
