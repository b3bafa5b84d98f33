package utils

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeoutManager 一个可以取消的计时器
// timeout时间内没有执行Cancel或者再次Start，就会通过executor执行fun函数
type TimeoutManager struct {
	lock       sync.Mutex
	timer      *time.Timer
	generation int64
	pending    bool
	// executor 到期的函数交给executor执行，用来切回调试会话所在的协程
	executor func(func())
}

// NewTimeoutManager executor为nil时直接在计时器的协程中执行
func NewTimeoutManager(executor func(func())) *TimeoutManager {
	if executor == nil {
		executor = func(f func()) { f() }
	}
	return &TimeoutManager{executor: executor}
}

// Start 开始计时，之前未到期的计时会被取消
func (t *TimeoutManager) Start(timeout time.Duration, fun func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stopLocked()
	t.generation++
	generation := t.generation
	t.pending = true
	t.timer = time.AfterFunc(timeout, func() {
		t.executor(func() {
			// 到期任务排队期间可能已经被取消
			t.lock.Lock()
			if t.generation != generation || !t.pending {
				t.lock.Unlock()
				return
			}
			t.pending = false
			t.timer = nil
			t.lock.Unlock()
			logrus.Debugf("[TimeoutManager] timer expired, performing action")
			fun()
		})
	})
}

// Cancel 取消计时，返回是否有未到期的计时被取消
func (t *TimeoutManager) Cancel() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	wasPending := t.pending
	t.stopLocked()
	return wasPending
}

// Pending 是否有未到期的计时
func (t *TimeoutManager) Pending() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.pending
}

func (t *TimeoutManager) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
	t.generation++
}
