package debugger

import (
	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
)

// Agent 到被调试运行时的命令通道
// 所有命令都是异步的，callback可以为nil。
// 实现需要保证callback在调试会话所在的协程中执行，并且每个命令最多回调一次，
// 连接断开时可能永远不回调。
type Agent interface {
	Enable(callback func(err error))
	Disable(callback func(err error))
	SetSkipAllPauses(skip bool, callback func(err error))
	StepInto(callback func(err error))
	StepOver(callback func(err error))
	StepOut(callback func(err error))
	Resume(callback func(err error))
	Pause(callback func(err error))
	SetBreakpointsActive(active bool, callback func(err error))
	SetBreakpointByURL(params *protocol.SetBreakpointByURLParams, callback func(result *protocol.SetBreakpointByURLResult, err error))
	SetBreakpoint(params *protocol.SetBreakpointParams, callback func(result *protocol.SetBreakpointResult, err error))
	RemoveBreakpoint(breakpointID string, callback func(err error))
	SetPauseOnExceptions(state constants.PauseOnExceptionsState, callback func(err error))
	SetAsyncCallStackDepth(maxDepth int, callback func(err error))
	SetVariableValue(params *protocol.SetVariableValueParams, callback func(err error))
	SetBlackboxPatterns(patterns []string, callback func(err error))
	EvaluateOnCallFrame(params *protocol.EvaluateOnCallFrameParams, callback func(result *protocol.EvaluateOnCallFrameResult, err error))
	ContinueToLocation(location protocol.Location, callback func(err error))
	RestartFrame(callFrameID string, callback func(result *protocol.RestartFrameResult, err error))
	SetScriptSource(params *protocol.SetScriptSourceParams, callback func(result *protocol.SetScriptSourceResult, err error))
	GetProperties(params *protocol.GetPropertiesParams, callback func(result *protocol.GetPropertiesResult, err error))
}

// Target 被调试的运行时实例，一个DebuggerModel只绑定一个Target
type Target interface {
	ID() string
	// IsNodeJS 脚本是否可能直接使用文件系统路径作为URL
	IsNodeJS() bool
}

// TargetInfo Target的简单实现
type TargetInfo struct {
	TargetID string
	Kind     constants.RuntimeKind
}

func NewTargetInfo(id string, kind constants.RuntimeKind) *TargetInfo {
	return &TargetInfo{TargetID: id, Kind: kind}
}

func (t *TargetInfo) ID() string {
	return t.TargetID
}

func (t *TargetInfo) IsNodeJS() bool {
	return t.Kind == constants.RuntimeNode
}

// Settings 持久化的调试配置，不归DebuggerModel所有
type Settings interface {
	PauseOnExceptionEnabled() bool
	PauseOnCaughtException() bool
	EnableAsyncStackTraces() bool
	// AddChangeListener 配置项变化时回调，返回取消监听的函数
	AddChangeListener(name string, listener func()) (remove func())
}

// 配置项名称
const (
	SettingPauseOnExceptionEnabled = "pauseOnExceptionEnabled"
	SettingPauseOnCaughtException  = "pauseOnCaughtException"
	SettingEnableAsyncStackTraces  = "enableAsyncStackTraces"
)

// SuspendableModel 可以挂起和恢复的会话模型
type SuspendableModel interface {
	SuspendModel(callback func(err error))
	ResumeModel(callback func(err error))
}

// EvaluateOptions 在调用帧上求值的参数
type EvaluateOptions struct {
	Expression            string
	ObjectGroup           string
	IncludeCommandLineAPI bool
	Silent                bool
	ReturnByValue         bool
	GeneratePreview       bool
}

// EvaluateCallback 求值结果，err不为nil时result为nil
type EvaluateCallback func(result *RemoteObject, exceptionDetails *protocol.ExceptionDetails, err error)

type noSettings struct{}

func (noSettings) PauseOnExceptionEnabled() bool { return false }
func (noSettings) PauseOnCaughtException() bool  { return false }
func (noSettings) EnableAsyncStackTraces() bool  { return false }
func (noSettings) AddChangeListener(string, func()) func() {
	return func() {}
}
