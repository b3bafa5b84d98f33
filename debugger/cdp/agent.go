package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/debugger"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Conn 到运行时的消息连接，*websocket.Conn实现了该接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ debugger.Agent = (*Agent)(nil)

// EventHandler 处理运行时推送的事件
type EventHandler func(method string, params json.RawMessage)

// ResultCallback 命令的原始结果
type ResultCallback func(result json.RawMessage, err error)

// Agent 通过inspector协议和运行时通信
//
// 每个命令分配一个自增id，响应按id找到对应的回调。
// 回调和事件都交给executor执行，保证和调试会话在同一个协程中。
// 连接断开以后，所有未完成的命令都会以ErrConnectionClosed回调。
type Agent struct {
	conn     Conn
	executor func(func())
	handler  EventHandler

	nextID    atomic.Int64
	writeLock sync.Mutex

	lock    sync.Mutex
	pending map[int64]ResultCallback
	closed  bool
}

// NewAgent executor为nil时回调直接在读协程中执行
func NewAgent(conn Conn, executor func(func()), handler EventHandler) *Agent {
	if executor == nil {
		executor = func(f func()) { f() }
	}
	return &Agent{
		conn:     conn,
		executor: executor,
		handler:  handler,
		pending:  map[int64]ResultCallback{},
	}
}

// Dial 连接到运行时的websocket调试地址
func Dial(ctx context.Context, wsURL string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("websocket connection error: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	logrus.Infof("[CDPAgent] connected to %s", wsURL)
	return conn, nil
}

// Run 循环读取消息直到连接断开或者ctx结束
func (a *Agent) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.Close()
		case <-done:
		}
	}()
	for {
		_, message, err := a.conn.ReadMessage()
		if err != nil {
			a.failPending()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.Infof("[CDPAgent] connection closed, err = %v", err)
			return fmt.Errorf("%w: %v", e.ErrConnectionClosed, err)
		}
		a.handleMessage(message)
	}
}

// Close 关闭连接，未完成的命令由Run回调失败
func (a *Agent) Close() error {
	a.lock.Lock()
	if a.closed {
		a.lock.Unlock()
		return nil
	}
	a.closed = true
	a.lock.Unlock()
	return a.conn.Close()
}

// handleMessage 带id的是命令的响应，带method的是事件
func (a *Agent) handleMessage(message []byte) {
	if !gjson.ValidBytes(message) {
		logrus.Warnf("[CDPAgent] drop invalid frame: %s", message)
		return
	}
	frame := gjson.ParseBytes(message)
	if id := frame.Get("id"); id.Exists() {
		a.lock.Lock()
		callback, ok := a.pending[id.Int()]
		delete(a.pending, id.Int())
		a.lock.Unlock()
		if !ok {
			logrus.Warnf("[CDPAgent] response for unknown command %d", id.Int())
			return
		}
		if errObject := frame.Get("error"); errObject.Exists() {
			protocolErr := &e.ProtocolError{
				Code:    int(errObject.Get("code").Int()),
				Message: errObject.Get("message").String(),
				Data:    errObject.Get("data").String(),
			}
			a.executor(func() { callback(nil, protocolErr) })
			return
		}
		result := json.RawMessage(frame.Get("result").Raw)
		a.executor(func() { callback(result, nil) })
		return
	}
	method := frame.Get("method").String()
	if method == "" || a.handler == nil {
		return
	}
	params := json.RawMessage(frame.Get("params").Raw)
	a.executor(func() { a.handler(method, params) })
}

func (a *Agent) failPending() {
	a.lock.Lock()
	a.closed = true
	pending := a.pending
	a.pending = map[int64]ResultCallback{}
	a.lock.Unlock()
	for _, callback := range pending {
		callback := callback
		a.executor(func() { callback(nil, e.ErrConnectionClosed) })
	}
}

// Send 发送一个命令，params为nil时不带参数
func (a *Agent) Send(method string, params interface{}, callback ResultCallback) {
	if callback == nil {
		callback = func(json.RawMessage, error) {}
	}
	id := a.nextID.Add(1)
	frame, err := buildFrame(id, method, params)
	if err != nil {
		a.executor(func() { callback(nil, err) })
		return
	}

	a.lock.Lock()
	if a.closed {
		a.lock.Unlock()
		a.executor(func() { callback(nil, e.ErrConnectionClosed) })
		return
	}
	a.pending[id] = callback
	a.lock.Unlock()

	a.writeLock.Lock()
	err = a.conn.WriteMessage(websocket.TextMessage, frame)
	a.writeLock.Unlock()
	if err != nil {
		logrus.Errorf("[CDPAgent] write %s fail, err = %v", method, err)
		a.lock.Lock()
		_, ok := a.pending[id]
		delete(a.pending, id)
		a.lock.Unlock()
		if ok {
			a.executor(func() { callback(nil, fmt.Errorf("%w: %v", e.ErrConnectionClosed, err)) })
		}
	}
}

// buildFrame 生成{"id":1,"method":"...","params":{...}}
func buildFrame(id int64, method string, params interface{}) ([]byte, error) {
	frame, err := sjson.SetBytes([]byte(`{}`), "id", id)
	if err != nil {
		return nil, err
	}
	if frame, err = sjson.SetBytes(frame, "method", method); err != nil {
		return nil, err
	}
	if params == nil {
		return frame, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}
	return sjson.SetRawBytes(frame, "params", raw)
}

func (a *Agent) command(method string, params interface{}, callback func(err error)) {
	a.Send(method, params, func(_ json.RawMessage, err error) {
		if callback != nil {
			callback(err)
		}
	})
}

func invoke[T any](a *Agent, method string, params interface{}, callback func(result *T, err error)) {
	a.Send(method, params, func(raw json.RawMessage, err error) {
		if callback == nil {
			return
		}
		if err != nil {
			callback(nil, err)
			return
		}
		result := new(T)
		if len(raw) != 0 {
			if err := json.Unmarshal(raw, result); err != nil {
				callback(nil, fmt.Errorf("decode %s result: %w", method, err))
				return
			}
		}
		callback(result, nil)
	})
}

func (a *Agent) Enable(callback func(err error)) {
	a.command(protocol.MethodEnable, nil, callback)
}

func (a *Agent) Disable(callback func(err error)) {
	a.command(protocol.MethodDisable, nil, callback)
}

// EnableRuntime 开启Runtime域，用于接收执行上下文清空事件
func (a *Agent) EnableRuntime(callback func(err error)) {
	a.command(protocol.MethodRuntimeEnable, nil, callback)
}

// RunIfWaitingForDebugger node.js以--inspect-brk启动时需要调用才会开始执行
func (a *Agent) RunIfWaitingForDebugger(callback func(err error)) {
	a.command(protocol.MethodRunIfWaiting, nil, callback)
}

func (a *Agent) SetSkipAllPauses(skip bool, callback func(err error)) {
	a.command(protocol.MethodSetSkipAllPauses, &protocol.SetSkipAllPausesParams{Skip: skip}, callback)
}

func (a *Agent) StepInto(callback func(err error)) {
	a.command(protocol.MethodStepInto, nil, callback)
}

func (a *Agent) StepOver(callback func(err error)) {
	a.command(protocol.MethodStepOver, nil, callback)
}

func (a *Agent) StepOut(callback func(err error)) {
	a.command(protocol.MethodStepOut, nil, callback)
}

func (a *Agent) Resume(callback func(err error)) {
	a.command(protocol.MethodResume, nil, callback)
}

func (a *Agent) Pause(callback func(err error)) {
	a.command(protocol.MethodPause, nil, callback)
}

func (a *Agent) SetBreakpointsActive(active bool, callback func(err error)) {
	a.command(protocol.MethodSetBreakpointsActive, &protocol.SetBreakpointsActiveParams{Active: active}, callback)
}

func (a *Agent) SetBreakpointByURL(params *protocol.SetBreakpointByURLParams,
	callback func(result *protocol.SetBreakpointByURLResult, err error)) {
	invoke(a, protocol.MethodSetBreakpointByURL, params, callback)
}

func (a *Agent) SetBreakpoint(params *protocol.SetBreakpointParams,
	callback func(result *protocol.SetBreakpointResult, err error)) {
	invoke(a, protocol.MethodSetBreakpoint, params, callback)
}

func (a *Agent) RemoveBreakpoint(breakpointID string, callback func(err error)) {
	a.command(protocol.MethodRemoveBreakpoint, &protocol.RemoveBreakpointParams{BreakpointID: breakpointID}, callback)
}

func (a *Agent) SetPauseOnExceptions(state constants.PauseOnExceptionsState, callback func(err error)) {
	a.command(protocol.MethodSetPauseOnExceptions, &protocol.SetPauseOnExceptionsParams{State: string(state)}, callback)
}

func (a *Agent) SetAsyncCallStackDepth(maxDepth int, callback func(err error)) {
	a.command(protocol.MethodSetAsyncCallStackDepth, &protocol.SetAsyncCallStackDepthParams{MaxDepth: maxDepth}, callback)
}

func (a *Agent) SetVariableValue(params *protocol.SetVariableValueParams, callback func(err error)) {
	a.command(protocol.MethodSetVariableValue, params, callback)
}

func (a *Agent) SetBlackboxPatterns(patterns []string, callback func(err error)) {
	if patterns == nil {
		patterns = []string{}
	}
	a.command(protocol.MethodSetBlackboxPatterns, &protocol.SetBlackboxPatternsParams{Patterns: patterns}, callback)
}

func (a *Agent) EvaluateOnCallFrame(params *protocol.EvaluateOnCallFrameParams,
	callback func(result *protocol.EvaluateOnCallFrameResult, err error)) {
	invoke(a, protocol.MethodEvaluateOnCallFrame, params, callback)
}

func (a *Agent) ContinueToLocation(location protocol.Location, callback func(err error)) {
	a.command(protocol.MethodContinueToLocation, &protocol.ContinueToLocationParams{Location: location}, callback)
}

func (a *Agent) RestartFrame(callFrameID string, callback func(result *protocol.RestartFrameResult, err error)) {
	invoke(a, protocol.MethodRestartFrame, &protocol.RestartFrameParams{CallFrameID: callFrameID}, callback)
}

func (a *Agent) SetScriptSource(params *protocol.SetScriptSourceParams,
	callback func(result *protocol.SetScriptSourceResult, err error)) {
	invoke(a, protocol.MethodSetScriptSource, params, callback)
}

func (a *Agent) GetProperties(params *protocol.GetPropertiesParams,
	callback func(result *protocol.GetPropertiesResult, err error)) {
	invoke(a, protocol.MethodGetProperties, params, callback)
}
