package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	lock1 := NewFileLock(lockPath)
	lock2 := NewFileLock(lockPath)

	acquired, err := lock1.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("First TryLock should succeed")
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if acquired {
		t.Error("Second TryLock should fail when lock is held")
	}

	if err := lock1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Error("TryLock should succeed after unlock")
	}
	lock2.Unlock()
}

func TestNewDirLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	lock, err := NewDirLock(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DirLockName), lock.Path())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLockContext_TimesOutWhileHeld(t *testing.T) {
	dir := t.TempDir()

	holder, err := NewDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	waiter, err := NewDirLock(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = waiter.LockContext(ctx, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestWithDirLock_Serializes(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "counter.txt")
	require.NoError(t, AtomicWrite(target, []byte("0")))

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- WithDirLock(context.Background(), dir, func() error {
				data, err := os.ReadFile(target)
				if err != nil {
					return err
				}
				var n int
				fmt.Sscanf(string(data), "%d", &n)
				return AtomicWrite(target, []byte(fmt.Sprintf("%d", n+1)))
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", goroutines), string(data))
}

func TestWithDirLock_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := WithDirLock(context.Background(), t.TempDir(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestAtomicWrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "test.txt")

	require.NoError(t, AtomicWrite(target, []byte("first")))
	require.NoError(t, AtomicWrite(target, []byte("second")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AtomicWrite(filepath.Join(dir, "a.csv"), []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWriteFailsOnDirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "occupied")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := AtomicWrite(target, []byte("x"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up after a failed rename")
}
