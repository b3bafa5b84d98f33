package main

import (
	"context"
	"encoding/json"

	"github.com/fansqz/inspector-debugger/debugger"
	"github.com/fansqz/inspector-debugger/debugger/cdp"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/fansqz/inspector-debugger/settings"
	"github.com/fansqz/inspector-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Inspector 一个被调试的运行时
//
// 到运行时的连接、调试会话和配置都挂在同一个串行执行器上，
// DAP连接和HTTP接口只能通过Post或Call访问model。
type Inspector struct {
	loop       *gosync.Loop
	agent      *cdp.Agent
	model      *debugger.DebuggerModel
	dispatcher *debugger.Dispatcher
	settings   *settings.Store
	// sessions 已连接的DAP会话数，只在会话协程中访问
	sessions int
}

func NewInspector(conn cdp.Conn, target debugger.Target, store *settings.Store) *Inspector {
	if store == nil {
		store = settings.New()
	}
	i := &Inspector{
		loop:     gosync.NewLoop(),
		settings: store,
	}
	i.agent = cdp.NewAgent(conn, i.post, i.handleEvent)
	i.model = debugger.NewDebuggerModel(target, i.agent, store, debugger.WithExecutor(i.post))
	i.dispatcher = debugger.NewDispatcher(i.model)
	return i
}

// Model 只能在Post或Call提交的任务中使用
func (i *Inspector) Model() *debugger.DebuggerModel {
	return i.model
}

func (i *Inspector) Settings() *settings.Store {
	return i.settings
}

// Post 提交任务到会话协程，不等待执行
func (i *Inspector) Post(task func()) bool {
	return i.loop.Post(task)
}

// Call 提交任务到会话协程并等待执行完成
func (i *Inspector) Call(ctx context.Context, task func()) error {
	return i.loop.Call(ctx, task)
}

func (i *Inspector) post(task func()) {
	if !i.loop.Post(task) {
		logrus.Warnf("[Inspector] loop is closed, drop task")
	}
}

// handleEvent 在会话协程中处理运行时推送的事件
func (i *Inspector) handleEvent(method string, params json.RawMessage) {
	if method == protocol.EventExecutionContextsCleared {
		i.model.GlobalObjectCleared()
		return
	}
	if err := i.dispatcher.Dispatch(method, params); err != nil {
		logrus.Warnf("[Inspector] dispatch %s fail, err = %v", method, err)
	}
}

// Run 开启调试并阻塞，直到连接断开或者ctx结束
func (i *Inspector) Run(ctx context.Context) error {
	removeListener := i.settings.AddChangeListener(settings.SettingBlackboxPatterns, func() {
		i.post(i.applyBlackboxPatterns)
	})
	defer removeListener()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return i.loop.Run(ctx)
	})
	g.Go(func() error {
		return i.agent.Run(ctx)
	})
	g.Go(func() error {
		return i.settings.Watch(ctx)
	})
	i.post(i.start)

	err := g.Wait()
	// loop已经退出，可以直接访问model
	i.model.Dispose()
	return err
}

func (i *Inspector) start() {
	i.agent.EnableRuntime(func(err error) {
		if err != nil {
			logrus.Errorf("[Inspector] enable runtime fail, err = %v", err)
		}
	})
	i.model.EnableDebugger(func(err error) {
		if err != nil {
			logrus.Errorf("[Inspector] enable debugger fail, err = %v", err)
			return
		}
		logrus.Infof("[Inspector] debugger enabled, target = %s", i.model.Target().ID())
	})
	i.applyBlackboxPatterns()
}

func (i *Inspector) applyBlackboxPatterns() {
	patterns := i.settings.BlackboxPatterns()
	i.model.SetBlackboxPatterns(patterns, func(ok bool) {
		if ok {
			logrus.Infof("[Inspector] blackbox patterns: %v", patterns)
		}
	})
}

// RunIfWaitingForDebugger 以等待调试器的方式启动的运行时在配置完成后才开始执行
func (i *Inspector) RunIfWaitingForDebugger() {
	i.agent.RunIfWaitingForDebugger(func(err error) {
		if err != nil {
			logrus.Warnf("[Inspector] runIfWaitingForDebugger fail, err = %v", err)
		}
	})
}

func (i *Inspector) addSession() {
	i.sessions++
}

func (i *Inspector) removeSession() {
	i.sessions--
}

func (i *Inspector) sessionCount() int {
	return i.sessions
}

// Close 断开到运行时的连接
func (i *Inspector) Close() error {
	return i.agent.Close()
}
