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

package segment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ptypes "github.com/gogo/protobuf/types"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosn.io/shmseg/pkg/metrics"
	"mosn.io/shmseg/pkg/mock"
	"mosn.io/shmseg/pkg/serialize"
	"mosn.io/shmseg/pkg/shm"
	shmsync "mosn.io/shmseg/pkg/sync"
	"mosn.io/shmseg/pkg/types"
)

const (
	helperEnv     = "SHMSEG_SEGMENT_HELPER"
	helperDirEnv  = "SHMSEG_SEGMENT_DIR"
	helperNameEnv = "SHMSEG_SEGMENT_NAME"
)

type payload struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type other struct {
	Balance float64 `json:"balance"`
}

func TestMain(m *testing.M) {
	if action := os.Getenv(helperEnv); action != "" {
		os.Exit(runHelper(action))
	}
	os.Exit(m.Run())
}

// runHelper plays the other process of cross-process tests.
func runHelper(action string) int {
	dir := WithDir(os.Getenv(helperDirEnv))
	name := os.Getenv(helperNameEnv)

	s, err := Attach(name, true, dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	switch action {
	case "update":
		g, err := s.AcquireLock(5 * time.Second)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 3
		}
		var p payload
		if err := s.GetData(&p); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 4
		}
		p.ID++
		p.Items = append(p.Items, "from helper")
		if err := s.SetData(p); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 5
		}
		g.Release()
		s.Close()
	case "abandon":
		if _, err := s.AcquireLock(5 * time.Second); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 3
		}
		// exit holding the lock and the segment
	default:
		return 1
	}
	return 0
}

func runHelperProcess(t *testing.T, action, dir, name string) {
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), helperEnv+"="+action, helperDirEnv+"="+dir, helperNameEnv+"="+name)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCreateAttachRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := payload{ID: 1, Name: "first", Items: []string{"a", "b"}}

	creator, err := Create("roundtrip", in, 1024, false, WithDir(dir))
	require.NoError(t, err)
	defer creator.Close()

	assert.Equal(t, "roundtrip", creator.Name())
	assert.Equal(t, Creator, creator.Mode())
	assert.Equal(t, uint64(1024), creator.Capacity())
	assert.False(t, creator.IsSynchronized())
	assert.True(t, exists(types.SegmentPath(dir, "roundtrip")))
	assert.True(t, exists(types.MutexPath(dir, "roundtrip")))

	attacher, err := Attach("roundtrip", true, WithDir(dir))
	require.NoError(t, err)
	defer attacher.Close()

	assert.Equal(t, Attacher, attacher.Mode())
	assert.True(t, attacher.IsSynchronized())
	assert.Equal(t, uint64(1024), attacher.Capacity())

	var out payload
	require.NoError(t, attacher.GetData(&out))
	assert.Equal(t, in, out)

	// writes are seen through every handle
	in.Name = "second"
	require.NoError(t, attacher.SetData(in))
	got, err := Get[payload](creator)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestCreateValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Create("", "v", 64, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	_, err = Create("a/b", "v", 64, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	_, err = Create(strings.Repeat("n", types.MaxNameLength+1), "v", 64, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	_, err = Create("zero", "v", 0, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrOutOfRange), "%v", err)

	_, err = Create("unknown", "v", 64, false, WithDir(dir), WithSerializer("yaml"))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	// "0123456789" is 12 bytes as JSON
	_, err = Create("small", "0123456789", 11, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrCapacityExceeded), "%v", err)
	assert.False(t, exists(types.SegmentPath(dir, "small")))

	s, err := Create("small", "0123456789", 12, false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// longest name fits the file name limit with prefix and suffix
	long := strings.Repeat("n", types.MaxNameLength)
	s, err = Create(long, "v", 64, false, WithDir(dir))
	require.NoError(t, err)

	a, err := Attach(long, true, WithDir(dir))
	require.NoError(t, err)
	v, err := Get[string](a)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, a.Close())
	require.NoError(t, s.Close())
}

func TestAttachValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Attach("", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	_, err = Attach("a/b", true, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	_, err = Attach(strings.Repeat("n", types.MaxNameLength+1), false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	_, err = Attach(strings.Repeat("n", types.MaxNameLength+1), true, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	// validation happens before any file is looked at
	_, err = Attach(strings.Repeat("n", types.MaxNameLength), false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)
}

func TestAttachLockTimeout(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("busy", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	g, err := s.AcquireLock(time.Second)
	require.NoError(t, err)

	// another thread holds the lock, a synchronized attach gives up
	errCh := make(chan error, 1)
	go func() {
		a, err := Attach("busy", true, WithDir(dir), WithLockTimeout(50*time.Millisecond))
		if a != nil {
			a.Close()
		}
		errCh <- err
	}()
	err = <-errCh
	assert.True(t, errors.Is(err, types.ErrLockTimeout), "%v", err)

	// an unsynchronized attach does not wait for the lock
	a, err := Attach("busy", false, WithDir(dir), WithLockTimeout(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	require.NoError(t, g.Release())
	a, err = Attach("busy", true, WithDir(dir), WithLockTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	stat, err := s.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stat.Attached)
}

func TestCreateExisting(t *testing.T) {
	dir := t.TempDir()

	s, err := Create("dup", 1, 64, false, WithDir(dir))
	require.NoError(t, err)

	_, err = Create("dup", 2, 64, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentExists), "%v", err)

	// the failed create left the live segment alone
	v, err := Get[int](s)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, s.Close())
	s, err = Create("dup", 2, 64, false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestAttachNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := Attach("absent", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)
	_, err = Attach("", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	s, err := Create("gone", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.False(t, exists(types.SegmentPath(dir, "gone")))
	assert.False(t, exists(types.MutexPath(dir, "gone")))
	_, err = Attach("gone", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)
}

func TestAttachInvalidSegment(t *testing.T) {
	dir := t.TempDir()
	path := types.SegmentPath(dir, "junk")
	require.NoError(t, os.WriteFile(path, make([]byte, 256), 0644))
	lock, err := shmsync.CreateMutex("junk", dir)
	require.NoError(t, err)
	defer lock.Close()

	// somebody holds the junk file, so it looks live
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, shm.LockShared(f, false))

	_, err = Attach("junk", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrInvalidSegment), "%v", err)
}

func TestAttachWithoutLockFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("nolock", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, shmsync.RemoveMutex("nolock", dir))
	_, err = Attach("nolock", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)
}

func TestCreatorCloseWhileAttached(t *testing.T) {
	dir := t.TempDir()

	a, err := Create("order", "p1", 64, true, WithDir(dir))
	require.NoError(t, err)
	b, err := Attach("order", false, WithDir(dir))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Close())

	v, err := Get[string](b)
	require.NoError(t, err)
	assert.Equal(t, "p1", v)

	g, err := b.AcquireLock(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Release())

	stat, err := b.Stat()
	require.NoError(t, err)
	assert.True(t, stat.ReleasePending)
	assert.Equal(t, uint32(1), stat.Attached)

	// still live, so neither create nor remove may take the name
	_, err = Create("order", "p2", 64, false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentExists), "%v", err)
	assert.True(t, errors.Is(Remove("order", WithDir(dir)), types.ErrSegmentInUse))

	// others can still attach
	c, err := Attach("order", false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestAttacherNeverRemoves(t *testing.T) {
	dir := t.TempDir()

	a, err := Create("leftover", "p1", 64, false, WithDir(dir))
	require.NoError(t, err)
	b, err := Attach("leftover", false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	assert.True(t, exists(types.SegmentPath(dir, "leftover")))
	assert.True(t, exists(types.MutexPath(dir, "leftover")))

	// nobody uses the leftover
	_, err = Attach("leftover", false, WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)

	// create reclaims it with a fresh value and size
	s, err := Create("leftover", "p2", 128, false, WithDir(dir))
	require.NoError(t, err)
	assert.Equal(t, uint64(128), s.Capacity())
	stat, err := s.Stat()
	require.NoError(t, err)
	assert.False(t, stat.ReleasePending)
	assert.Equal(t, uint32(0), stat.Attached)
	assert.Equal(t, uint64(2), stat.Generation)
	require.NoError(t, s.Close())
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()

	err := Remove("absent", WithDir(dir))
	assert.True(t, errors.Is(err, types.ErrSegmentNotFound), "%v", err)

	a, err := Create("cleanup", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	assert.True(t, errors.Is(Remove("cleanup", WithDir(dir)), types.ErrSegmentInUse))

	b, err := Attach("cleanup", false, WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	require.NoError(t, Remove("cleanup", WithDir(dir)))
	assert.False(t, exists(types.SegmentPath(dir, "cleanup")))
	assert.False(t, exists(types.MutexPath(dir, "cleanup")))
}

func TestCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("closing", "v", 64, false, WithDir(dir))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	var v string
	assert.True(t, errors.Is(s.GetData(&v), types.ErrSegmentClosed))
	assert.True(t, errors.Is(s.SetData("x"), types.ErrSegmentClosed))
	_, err = s.ReadBytes()
	assert.True(t, errors.Is(err, types.ErrSegmentClosed))
	_, err = s.AcquireLock(time.Second)
	assert.True(t, errors.Is(err, types.ErrSegmentClosed))
	_, err = s.Stat()
	assert.True(t, errors.Is(err, types.ErrSegmentClosed))
}

func TestSetDataOverflow(t *testing.T) {
	dir := t.TempDir()
	metrics.ResetAll()
	defer metrics.ResetAll()

	s, err := Create("overflow", "short", 16, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	err = s.SetData(strings.Repeat("x", 32))
	assert.True(t, errors.Is(err, types.ErrCapacityExceeded), "%v", err)

	v, err := Get[string](s)
	require.NoError(t, err)
	assert.Equal(t, "short", v)

	// exactly the capacity fits
	require.NoError(t, s.SetData(strings.Repeat("y", 14)))
	assert.Equal(t, int64(1), metrics.NewSegmentStats("overflow").Counter(types.DataOverflow).Count())
}

func TestGetDataMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("mismatch", payload{ID: 7, Name: "p"}, 256, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	// another type
	_, err = Get[other](s)
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)
	_, err = Get[int](s)
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)

	// another serializer
	a, err := Attach("mismatch", false, WithDir(dir), WithSerializer("simple"))
	require.NoError(t, err)
	defer a.Close()
	_, err = Get[string](a)
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)

	// a nil target is a caller error
	assert.True(t, errors.Is(s.GetData(nil), types.ErrInvalidArgument))
}

func TestTornAndCorruptReads(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("torn", "stable", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	// a write in progress
	gen := atomic.LoadUint64(&s.header.generation)
	atomic.StoreUint64(&s.header.generation, gen+1)
	_, err = Get[string](s)
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)

	// the next write recovers from a writer that died half way
	require.NoError(t, s.SetData("recovered"))
	assert.Equal(t, gen+4, atomic.LoadUint64(&s.header.generation))
	v, err := Get[string](s)
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)

	s.payload[1] ^= 0xff
	_, err = s.ReadBytes()
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)
}

func TestRawBytes(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("raw", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	b, err := s.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte(`"v"`), b)

	require.NoError(t, s.WriteBytes([]byte(`"written raw"`)))
	v, err := Get[string](s)
	require.NoError(t, err)
	assert.Equal(t, "written raw", v)

	err = s.WriteBytes(make([]byte, 65))
	assert.True(t, errors.Is(err, types.ErrCapacityExceeded), "%v", err)
}

func TestSerializers(t *testing.T) {
	dir := t.TempDir()

	s, err := Create("proto", &ptypes.StringValue{Value: "pb"}, 64, false, WithDir(dir), WithSerializer("protobuf"))
	require.NoError(t, err)
	defer s.Close()
	msg, err := Get[*ptypes.StringValue](s)
	require.NoError(t, err)
	assert.Equal(t, "pb", msg.Value)

	m, err := Create("simple", map[string]string{"k": "v"}, 64, false, WithDir(dir), WithSerializer("simple"))
	require.NoError(t, err)
	defer m.Close()
	headers, err := Get[map[string]string](m)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, headers)

	stat, err := m.Stat()
	require.NoError(t, err)
	assert.Equal(t, "simple", stat.Codec)
	assert.Equal(t, "simple", stat.Serializer)
}

func TestSerializerErrors(t *testing.T) {
	dir := t.TempDir()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	codec := mock.NewMockSerializer(ctrl)
	codec.EXPECT().Name().Return("failing").AnyTimes()
	require.NoError(t, serialize.Register(codec))

	// nothing is created for a value that cannot be encoded
	codec.EXPECT().Serialize("rejected").Return(nil, fmt.Errorf("unsupported value"))
	_, err := Create("failing", "rejected", 64, false, WithDir(dir), WithSerializer("failing"))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)
	assert.False(t, exists(types.SegmentPath(dir, "failing")))
	assert.False(t, exists(types.MutexPath(dir, "failing")))

	codec.EXPECT().Serialize("accepted").Return([]byte("raw"), nil)
	s, err := Create("failing", "accepted", 64, false, WithDir(dir), WithSerializer("failing"))
	require.NoError(t, err)
	defer s.Close()

	codec.EXPECT().Serialize(42).Return(nil, fmt.Errorf("unsupported value"))
	err = s.SetData(42)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", err)

	codec.EXPECT().Deserialize([]byte("raw"), gomock.Any()).Return(fmt.Errorf("truncated"))
	var out string
	err = s.GetData(&out)
	assert.True(t, errors.Is(err, types.ErrDeserialization), "%v", err)
}

func TestLocking(t *testing.T) {
	dir := t.TempDir()
	metrics.ResetAll()
	defer metrics.ResetAll()

	s, err := Create("locking", 0, 64, true, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()
	a, err := Attach("locking", false, WithDir(dir))
	require.NoError(t, err)
	defer a.Close()

	g1, err := s.AcquireLock(DefaultLockTimeout)
	require.NoError(t, err)
	g2, err := s.AcquireLock(time.Second)
	require.NoError(t, err)

	// another thread times out, its handle does not matter
	errCh := make(chan error, 1)
	go func() {
		_, err := a.AcquireLock(20 * time.Millisecond)
		errCh <- err
	}()
	err = <-errCh
	assert.True(t, errors.Is(err, types.ErrLockTimeout), "%v", err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	go func() {
		_, err := a.AcquireLockContext(ctx)
		errCh <- err
	}()
	err = <-errCh
	assert.True(t, errors.Is(err, types.ErrLockTimeout), "%v", err)

	require.NoError(t, g2.Release())
	require.NoError(t, g1.Release())

	go func() {
		g, err := a.AcquireLock(time.Second)
		if err == nil {
			err = g.Release()
		}
		errCh <- err
	}()
	require.NoError(t, <-errCh)

	stats := metrics.NewSegmentStats("locking")
	assert.Equal(t, int64(3), stats.Counter(types.LockAcquire).Count())
	assert.Equal(t, int64(2), stats.Counter(types.LockTimeout).Count())
	assert.Equal(t, int64(5), stats.Histogram(types.LockWaitUs).Count())
}

func TestCrossProcessUpdate(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("shared", payload{ID: 1, Items: []string{"from parent"}}, 1024, true, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	runHelperProcess(t, "update", dir, "shared")

	g, err := s.AcquireLock(time.Second)
	require.NoError(t, err)
	defer g.Release()
	got, err := Get[payload](s)
	require.NoError(t, err)
	assert.Equal(t, payload{ID: 2, Items: []string{"from parent", "from helper"}}, got)

	stat, err := s.Stat()
	require.NoError(t, err)
	assert.NotEqual(t, os.Getpid(), stat.Writer)
	assert.Equal(t, uint32(0), stat.Attached)
}

func TestCrossProcessAbandoned(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("abandoned", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	runHelperProcess(t, "abandon", dir, "abandoned")

	g, err := s.AcquireLock(5 * time.Second)
	require.True(t, errors.Is(err, types.ErrAbandonedLock), "%v", err)
	require.NotNil(t, g)
	require.NoError(t, g.Release())

	g, err = s.AcquireLock(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Release())

	// the dead helper no longer keeps the segment alive
	require.NoError(t, s.Close())
	assert.False(t, exists(types.SegmentPath(dir, "abandoned")))
}

func TestCrossProcessAbandonedOnAttach(t *testing.T) {
	dir := t.TempDir()
	s, err := Create("abandoned-attach", "v", 64, false, WithDir(dir))
	require.NoError(t, err)
	defer s.Close()

	runHelperProcess(t, "abandon", dir, "abandoned-attach")

	// the synchronized attach takes the lock over and says so
	a, err := Attach("abandoned-attach", true, WithDir(dir), WithLockTimeout(5*time.Second))
	require.True(t, errors.Is(err, types.ErrAbandonedLock), "%v", err)
	require.NotNil(t, a)
	defer a.Close()
	assert.True(t, a.IsSynchronized())

	v, err := Get[string](a)
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	stat, err := a.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stat.Lock.Abandoned)
	assert.Equal(t, 0, stat.Lock.OwnerPid)

	// reported once, later acquirers see a plain lock
	g, err := a.AcquireLock(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Release())
	g, err = s.AcquireLock(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Release())
}
