package constants

// DebuggerEventType 调试会话对外发出的事件类型
type DebuggerEventType string

const (
	DebuggerWasEnabled        DebuggerEventType = "DebuggerWasEnabled"
	DebuggerWasDisabled       DebuggerEventType = "DebuggerWasDisabled"
	BeforeDebuggerPaused      DebuggerEventType = "BeforeDebuggerPaused"
	DebuggerPaused            DebuggerEventType = "DebuggerPaused"
	DebuggerResumed           DebuggerEventType = "DebuggerResumed"
	ParsedScriptSource        DebuggerEventType = "ParsedScriptSource"
	FailedToParseScriptSource DebuggerEventType = "FailedToParseScriptSource"
	GlobalObjectCleared       DebuggerEventType = "GlobalObjectCleared"
	CallFrameSelected         DebuggerEventType = "CallFrameSelected"
)

// PauseReason 程序暂停的原因，和运行时上报的reason字段保持一致
type PauseReason string

const (
	PauseReasonDOM              PauseReason = "DOM"
	PauseReasonEventListener    PauseReason = "EventListener"
	PauseReasonXHR              PauseReason = "XHR"
	PauseReasonException        PauseReason = "exception"
	PauseReasonPromiseRejection PauseReason = "promiseRejection"
	PauseReasonAssert           PauseReason = "assert"
	PauseReasonDebugCommand     PauseReason = "debugCommand"
	PauseReasonOther            PauseReason = "other"
)

// ParsePauseReason 未知的reason统一归为other
func ParsePauseReason(reason string) PauseReason {
	switch r := PauseReason(reason); r {
	case PauseReasonDOM, PauseReasonEventListener, PauseReasonXHR, PauseReasonException,
		PauseReasonPromiseRejection, PauseReasonAssert, PauseReasonDebugCommand, PauseReasonOther:
		return r
	}
	return PauseReasonOther
}

// ScopeType 作用域类型
//
// Global: 全局对象上的变量。
// Local: 当前函数内的局部变量和参数。
// With: with语句引入的对象作用域。
// Closure: 外层函数被闭包捕获的变量。
// Catch: catch子句绑定的异常变量。
// Block: let/const所在的块级作用域。
// Script: 顶层let/const/class声明。
// Eval: eval代码的作用域。
// Module: ES模块作用域。
type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeLocal   ScopeType = "local"
	ScopeWith    ScopeType = "with"
	ScopeClosure ScopeType = "closure"
	ScopeCatch   ScopeType = "catch"
	ScopeBlock   ScopeType = "block"
	ScopeScript  ScopeType = "script"
	ScopeEval    ScopeType = "eval"
	ScopeModule  ScopeType = "module"
)

// IsDeclarative With和Global以外的作用域都是声明式作用域，需要通过引用创建远程对象
func (s ScopeType) IsDeclarative() bool {
	return s != ScopeWith && s != ScopeGlobal
}

// PauseOnExceptionsState 遇到异常时的暂停策略
type PauseOnExceptionsState string

const (
	DontPauseOnExceptions     PauseOnExceptionsState = "none"
	PauseOnAllExceptions      PauseOnExceptionsState = "all"
	PauseOnUncaughtExceptions PauseOnExceptionsState = "uncaught"
)

// StepType 单步调试类型
type StepType string

const (
	StepIn   StepType = "stepIn"
	StepOut  StepType = "stepOut"
	StepOver StepType = "stepOver"
)

const (
	// MaxAsyncStackChainDepth 开启异步栈时请求的最大异步链深度
	MaxAsyncStackChainDepth = 4
	// AsyncFunctionDescription async函数包装产生的异步栈段描述
	AsyncFunctionDescription = "async function"
	// MaxConsecutiveVetoedPauses 连续被拦截的暂停次数上限，超过以后直接展示暂停
	MaxConsecutiveVetoedPauses = 16
)
