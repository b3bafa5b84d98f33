package gosync

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrLoopClosed = errors.New("loop is closed")

// Loop 串行执行器
// 所有提交的任务都在Run所在的协程中按提交顺序执行，一个任务执行完以后才会执行下一个，
// 调试会话的状态只在这个协程里修改，所以不需要加锁。
// 队列不限长度，任务内部可以继续Post而不会阻塞。
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post 提交任务，不等待执行，loop关闭以后返回false
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Call 提交任务并等待执行完成
// 不能在loop自己的协程中调用，否则会死锁
func (l *Loop) Call(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// 关闭前已经入队的任务仍然会被执行
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Run 执行任务直到ctx结束或者Close，Close之前已经提交的任务会全部执行完
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, task := range tasks {
			l.runTask(task)
		}
		if closed && len(tasks) == 0 {
			return nil
		}
		if len(tasks) != 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// Close 不再接收新的任务
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Done loop退出以后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if err := recover(); err != nil {
			logrus.Errorf("[Loop] task panic, err = %v\n%s", err, debug.Stack())
		}
	}()
	task()
}
