package debugger

import (
	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
)

// fakeAgent 记录发出的命令，回调同步执行
type fakeAgent struct {
	commands []string

	err                   error
	pauseOnExceptions     []constants.PauseOnExceptionsState
	asyncDepths           []int
	skipAllPauses         []bool
	breakpointByURLParams []*protocol.SetBreakpointByURLParams
	breakpointParams      []*protocol.SetBreakpointParams
	blackboxPatterns      [][]string
	variableParams        []*protocol.SetVariableValueParams
	evaluateParams        []*protocol.EvaluateOnCallFrameParams
	getPropertiesParams   []*protocol.GetPropertiesParams

	breakpointByURLResult *protocol.SetBreakpointByURLResult
	breakpointResult      *protocol.SetBreakpointResult
	evaluateResult        *protocol.EvaluateOnCallFrameResult
	scriptSourceResult    *protocol.SetScriptSourceResult
	propertiesResult      *protocol.GetPropertiesResult

	// holdEnable 不立即回调enable，模拟命令还在路上
	holdEnable     bool
	enableHandlers []func(err error)
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{}
}

func (f *fakeAgent) done(name string, callback func(err error)) {
	f.commands = append(f.commands, name)
	if callback != nil {
		callback(f.err)
	}
}

func (f *fakeAgent) count(name string) int {
	n := 0
	for _, command := range f.commands {
		if command == name {
			n++
		}
	}
	return n
}

func (f *fakeAgent) Enable(callback func(err error)) {
	if f.holdEnable {
		f.commands = append(f.commands, protocol.MethodEnable)
		f.enableHandlers = append(f.enableHandlers, callback)
		return
	}
	f.done(protocol.MethodEnable, callback)
}

func (f *fakeAgent) Disable(callback func(err error)) {
	f.done(protocol.MethodDisable, callback)
}

func (f *fakeAgent) SetSkipAllPauses(skip bool, callback func(err error)) {
	f.skipAllPauses = append(f.skipAllPauses, skip)
	f.done(protocol.MethodSetSkipAllPauses, callback)
}

func (f *fakeAgent) StepInto(callback func(err error)) {
	f.done(protocol.MethodStepInto, callback)
}

func (f *fakeAgent) StepOver(callback func(err error)) {
	f.done(protocol.MethodStepOver, callback)
}

func (f *fakeAgent) StepOut(callback func(err error)) {
	f.done(protocol.MethodStepOut, callback)
}

func (f *fakeAgent) Resume(callback func(err error)) {
	f.done(protocol.MethodResume, callback)
}

func (f *fakeAgent) Pause(callback func(err error)) {
	f.done(protocol.MethodPause, callback)
}

func (f *fakeAgent) SetBreakpointsActive(active bool, callback func(err error)) {
	f.done(protocol.MethodSetBreakpointsActive, callback)
}

func (f *fakeAgent) SetBreakpointByURL(params *protocol.SetBreakpointByURLParams,
	callback func(result *protocol.SetBreakpointByURLResult, err error)) {
	f.commands = append(f.commands, protocol.MethodSetBreakpointByURL)
	f.breakpointByURLParams = append(f.breakpointByURLParams, params)
	callback(f.breakpointByURLResult, f.err)
}

func (f *fakeAgent) SetBreakpoint(params *protocol.SetBreakpointParams,
	callback func(result *protocol.SetBreakpointResult, err error)) {
	f.commands = append(f.commands, protocol.MethodSetBreakpoint)
	f.breakpointParams = append(f.breakpointParams, params)
	callback(f.breakpointResult, f.err)
}

func (f *fakeAgent) RemoveBreakpoint(breakpointID string, callback func(err error)) {
	f.done(protocol.MethodRemoveBreakpoint, callback)
}

func (f *fakeAgent) SetPauseOnExceptions(state constants.PauseOnExceptionsState, callback func(err error)) {
	f.pauseOnExceptions = append(f.pauseOnExceptions, state)
	f.done(protocol.MethodSetPauseOnExceptions, callback)
}

func (f *fakeAgent) SetAsyncCallStackDepth(maxDepth int, callback func(err error)) {
	f.asyncDepths = append(f.asyncDepths, maxDepth)
	f.done(protocol.MethodSetAsyncCallStackDepth, callback)
}

func (f *fakeAgent) SetVariableValue(params *protocol.SetVariableValueParams, callback func(err error)) {
	f.variableParams = append(f.variableParams, params)
	f.done(protocol.MethodSetVariableValue, callback)
}

func (f *fakeAgent) SetBlackboxPatterns(patterns []string, callback func(err error)) {
	f.blackboxPatterns = append(f.blackboxPatterns, patterns)
	f.done(protocol.MethodSetBlackboxPatterns, callback)
}

func (f *fakeAgent) EvaluateOnCallFrame(params *protocol.EvaluateOnCallFrameParams,
	callback func(result *protocol.EvaluateOnCallFrameResult, err error)) {
	f.commands = append(f.commands, protocol.MethodEvaluateOnCallFrame)
	f.evaluateParams = append(f.evaluateParams, params)
	callback(f.evaluateResult, f.err)
}

func (f *fakeAgent) ContinueToLocation(location protocol.Location, callback func(err error)) {
	f.done(protocol.MethodContinueToLocation, callback)
}

func (f *fakeAgent) RestartFrame(callFrameID string, callback func(result *protocol.RestartFrameResult, err error)) {
	f.commands = append(f.commands, protocol.MethodRestartFrame)
	callback(&protocol.RestartFrameResult{}, f.err)
}

func (f *fakeAgent) SetScriptSource(params *protocol.SetScriptSourceParams,
	callback func(result *protocol.SetScriptSourceResult, err error)) {
	f.commands = append(f.commands, protocol.MethodSetScriptSource)
	callback(f.scriptSourceResult, f.err)
}

func (f *fakeAgent) GetProperties(params *protocol.GetPropertiesParams,
	callback func(result *protocol.GetPropertiesResult, err error)) {
	f.commands = append(f.commands, protocol.MethodGetProperties)
	f.getPropertiesParams = append(f.getPropertiesParams, params)
	callback(f.propertiesResult, f.err)
}

// fakeSettings 内存中的配置
type fakeSettings struct {
	pauseOnException bool
	pauseOnCaught    bool
	asyncStackTraces bool
	listeners        map[string][]func()
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{listeners: map[string][]func(){}}
}

func (s *fakeSettings) PauseOnExceptionEnabled() bool { return s.pauseOnException }
func (s *fakeSettings) PauseOnCaughtException() bool  { return s.pauseOnCaught }
func (s *fakeSettings) EnableAsyncStackTraces() bool  { return s.asyncStackTraces }

func (s *fakeSettings) AddChangeListener(name string, listener func()) func() {
	s.listeners[name] = append(s.listeners[name], listener)
	index := len(s.listeners[name]) - 1
	return func() {
		s.listeners[name][index] = nil
	}
}

func (s *fakeSettings) fire(name string) {
	for _, listener := range s.listeners[name] {
		if listener != nil {
			listener()
		}
	}
}
