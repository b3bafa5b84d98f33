package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fansqz/inspector-debugger/debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.Nil(t, err)
	assert.False(t, store.PauseOnExceptionEnabled())
	assert.False(t, store.PauseOnCaughtException())
	assert.True(t, store.EnableAsyncStackTraces())
	assert.Equal(t, time.Duration(0), store.SkipAllPausesTimeout())
	assert.Empty(t, store.BlackboxPatterns())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.Nil(t, os.WriteFile(path, []byte(`
pauseOnExceptionEnabled: true
pauseOnCaughtException: true
enableAsyncStackTraces: false
skipAllPausesTimeout: 5s
blackboxPatterns:
  - node_modules
  - vendor\.js$
`), 0o644))

	store, err := Load(path)
	require.Nil(t, err)
	assert.True(t, store.PauseOnExceptionEnabled())
	assert.True(t, store.PauseOnCaughtException())
	assert.False(t, store.EnableAsyncStackTraces())
	assert.Equal(t, 5*time.Second, store.SkipAllPausesTimeout())
	assert.Equal(t, []string{"node_modules", `vendor\.js$`}, store.BlackboxPatterns())

	require.Nil(t, os.WriteFile(path, []byte("pauseOnExceptionEnabled: [oops"), 0o644))
	_, err = Load(path)
	assert.NotNil(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store, err := Load(path)
	require.Nil(t, err)
	store.Set(func(doc *Document) {
		doc.PauseOnExceptionEnabled = true
		doc.SkipAllPausesTimeout = 1500 * time.Millisecond
		doc.BlackboxPatterns = []string{"lib"}
	})
	require.Nil(t, store.Save())

	loaded, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, store.Document(), loaded.Document())

	assert.NotNil(t, New().Save())
}

func TestUpdateNotifiesChangedKeys(t *testing.T) {
	store := New()
	var pauseOnException, asyncStackTraces, blackbox int
	remove := store.AddChangeListener(debugger.SettingPauseOnExceptionEnabled, func() { pauseOnException++ })
	store.AddChangeListener(debugger.SettingEnableAsyncStackTraces, func() { asyncStackTraces++ })
	store.AddChangeListener(SettingBlackboxPatterns, func() { blackbox++ })

	store.Set(func(doc *Document) {
		doc.PauseOnExceptionEnabled = true
	})
	assert.Equal(t, 1, pauseOnException)
	assert.Equal(t, 0, asyncStackTraces)

	// 值没有变化时不通知
	store.Set(func(doc *Document) {
		doc.PauseOnExceptionEnabled = true
		doc.BlackboxPatterns = nil
	})
	assert.Equal(t, 1, pauseOnException)
	assert.Equal(t, 0, blackbox)

	store.Set(func(doc *Document) {
		doc.BlackboxPatterns = []string{"a"}
	})
	assert.Equal(t, 1, blackbox)

	remove()
	store.Set(func(doc *Document) {
		doc.PauseOnExceptionEnabled = false
	})
	assert.Equal(t, 1, pauseOnException)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store, err := Load(path)
	require.Nil(t, err)
	var caught int
	store.AddChangeListener(debugger.SettingPauseOnCaughtException, func() { caught++ })

	require.Nil(t, os.WriteFile(path, []byte("pauseOnCaughtException: true\n"), 0o644))
	require.Nil(t, store.Reload())
	assert.True(t, store.PauseOnCaughtException())
	assert.Equal(t, 1, caught)
	// 文件中没有的配置项使用默认值
	assert.True(t, store.EnableAsyncStackTraces())
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.Nil(t, os.WriteFile(path, []byte("enableAsyncStackTraces: true\n"), 0o644))
	store, err := Load(path)
	require.Nil(t, err)

	var changes atomic.Int32
	store.AddChangeListener(debugger.SettingEnableAsyncStackTraces, func() { changes.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx)
	}()
	// 等待watcher启动
	time.Sleep(50 * time.Millisecond)

	require.Nil(t, os.WriteFile(path, []byte("enableAsyncStackTraces: false\n"), 0o644))
	assert.Eventually(t, func() bool {
		return !store.EnableAsyncStackTraces()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), changes.Load())

	cancel()
	assert.Nil(t, <-done)
}
