package protocol

// 调试命令
const (
	MethodEnable                 = "Debugger.enable"
	MethodDisable                = "Debugger.disable"
	MethodSetSkipAllPauses       = "Debugger.setSkipAllPauses"
	MethodStepInto               = "Debugger.stepInto"
	MethodStepOver               = "Debugger.stepOver"
	MethodStepOut                = "Debugger.stepOut"
	MethodResume                 = "Debugger.resume"
	MethodPause                  = "Debugger.pause"
	MethodSetBreakpointsActive   = "Debugger.setBreakpointsActive"
	MethodSetBreakpointByURL     = "Debugger.setBreakpointByUrl"
	MethodSetBreakpoint          = "Debugger.setBreakpoint"
	MethodRemoveBreakpoint       = "Debugger.removeBreakpoint"
	MethodSetPauseOnExceptions   = "Debugger.setPauseOnExceptions"
	MethodSetAsyncCallStackDepth = "Debugger.setAsyncCallStackDepth"
	MethodSetVariableValue       = "Debugger.setVariableValue"
	MethodSetBlackboxPatterns    = "Debugger.setBlackboxPatterns"
	MethodEvaluateOnCallFrame    = "Debugger.evaluateOnCallFrame"
	MethodContinueToLocation     = "Debugger.continueToLocation"
	MethodRestartFrame           = "Debugger.restartFrame"
	MethodSetScriptSource        = "Debugger.setScriptSource"
	MethodGetProperties          = "Runtime.getProperties"
	MethodRuntimeEnable          = "Runtime.enable"
	MethodRunIfWaiting           = "Runtime.runIfWaitingForDebugger"
)

// 运行时推送的事件
const (
	EventPaused              = "Debugger.paused"
	EventResumed             = "Debugger.resumed"
	EventScriptParsed        = "Debugger.scriptParsed"
	EventScriptFailedToParse = "Debugger.scriptFailedToParse"
	EventBreakpointResolved  = "Debugger.breakpointResolved"

	// EventExecutionContextsCleared 页面导航以后所有执行上下文被清空
	EventExecutionContextsCleared = "Runtime.executionContextsCleared"
)
