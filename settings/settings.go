package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fansqz/inspector-debugger/debugger"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// 除了调试会话使用的配置项以外的配置项名称
const (
	SettingSkipAllPausesTimeout = "skipAllPausesTimeout"
	SettingBlackboxPatterns     = "blackboxPatterns"
)

var _ debugger.Settings = (*Store)(nil)

// Document 配置文件的内容
type Document struct {
	PauseOnExceptionEnabled bool          `yaml:"pauseOnExceptionEnabled"`
	PauseOnCaughtException  bool          `yaml:"pauseOnCaughtException"`
	EnableAsyncStackTraces  bool          `yaml:"enableAsyncStackTraces"`
	SkipAllPausesTimeout    time.Duration `yaml:"skipAllPausesTimeout"`
	BlackboxPatterns        []string      `yaml:"blackboxPatterns"`
}

// Default 默认配置，异步栈默认开启
func Default() Document {
	return Document{
		EnableAsyncStackTraces: true,
		BlackboxPatterns:       []string{},
	}
}

// changedKeys 两份配置中值不同的配置项
func changedKeys(old, new Document) []string {
	var keys []string
	if old.PauseOnExceptionEnabled != new.PauseOnExceptionEnabled {
		keys = append(keys, debugger.SettingPauseOnExceptionEnabled)
	}
	if old.PauseOnCaughtException != new.PauseOnCaughtException {
		keys = append(keys, debugger.SettingPauseOnCaughtException)
	}
	if old.EnableAsyncStackTraces != new.EnableAsyncStackTraces {
		keys = append(keys, debugger.SettingEnableAsyncStackTraces)
	}
	if old.SkipAllPausesTimeout != new.SkipAllPausesTimeout {
		keys = append(keys, SettingSkipAllPausesTimeout)
	}
	if !slices.Equal(old.BlackboxPatterns, new.BlackboxPatterns) {
		keys = append(keys, SettingBlackboxPatterns)
	}
	return keys
}

// Store 持久化的调试配置
// 读写都是并发安全的，监听者在修改配置的协程中回调，回调时不持有锁。
type Store struct {
	lock      sync.RWMutex
	path      string
	doc       Document
	nextID    int
	listeners map[string]map[int]func()
}

// New 创建只在内存中的配置
func New() *Store {
	return &Store{
		doc:       Default(),
		listeners: map[string]map[int]func(){},
	}
}

// Load 从YAML文件读取配置，文件不存在时使用默认配置
func Load(path string) (*Store, error) {
	s := New()
	s.path = path
	doc, err := readDocument(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		s.doc = doc
	}
	return s, nil
}

func readDocument(path string) (Document, error) {
	doc := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if doc.BlackboxPatterns == nil {
		doc.BlackboxPatterns = []string{}
	}
	return doc, nil
}

func (s *Store) Path() string {
	return s.path
}

// Document 当前配置的副本
func (s *Store) Document() Document {
	s.lock.RLock()
	defer s.lock.RUnlock()
	doc := s.doc
	doc.BlackboxPatterns = slices.Clone(s.doc.BlackboxPatterns)
	return doc
}

func (s *Store) PauseOnExceptionEnabled() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.doc.PauseOnExceptionEnabled
}

func (s *Store) PauseOnCaughtException() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.doc.PauseOnCaughtException
}

func (s *Store) EnableAsyncStackTraces() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.doc.EnableAsyncStackTraces
}

func (s *Store) SkipAllPausesTimeout() time.Duration {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.doc.SkipAllPausesTimeout
}

func (s *Store) BlackboxPatterns() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return slices.Clone(s.doc.BlackboxPatterns)
}

// AddChangeListener 配置项的值变化时回调
func (s *Store) AddChangeListener(name string, listener func()) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	id := s.nextID
	s.nextID++
	if s.listeners[name] == nil {
		s.listeners[name] = map[int]func(){}
	}
	s.listeners[name][id] = listener
	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.listeners[name], id)
	}
}

// Set 修改配置并通知值发生变化的配置项
func (s *Store) Set(mutate func(doc *Document)) {
	doc := s.Document()
	mutate(&doc)
	s.replace(doc)
}

func (s *Store) replace(doc Document) {
	if doc.BlackboxPatterns == nil {
		doc.BlackboxPatterns = []string{}
	}
	s.lock.Lock()
	keys := changedKeys(s.doc, doc)
	s.doc = doc
	var listeners []func()
	for _, key := range keys {
		for _, listener := range s.listeners[key] {
			listeners = append(listeners, listener)
		}
	}
	s.lock.Unlock()

	if len(keys) != 0 {
		logrus.Infof("[Settings] changed: %v", keys)
	}
	for _, listener := range listeners {
		listener()
	}
}

// Save 把配置写回文件
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("settings has no file")
	}
	data, err := yaml.Marshal(s.Document())
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Reload 重新读取配置文件，文件被删除时保持原配置
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	s.replace(doc)
	return nil
}

// Watch 监听配置文件变化并自动Reload，直到ctx结束
// 监听的是文件所在目录，编辑器通过重命名保存文件时也能收到通知
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				logrus.Warnf("[Settings] reload %s fail, err = %v", s.path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Errorf("[Settings] watch %s fail, err = %v", s.path, err)
		}
	}
}
