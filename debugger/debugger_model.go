package debugger

import (
	"encoding/json"
	"time"

	"github.com/fansqz/inspector-debugger/constants"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/fansqz/inspector-debugger/utils"
	"github.com/sirupsen/logrus"
)

// DebuggerModel 一个被调试目标的调试会话
//
// DebuggerModel不是并发安全的，所有方法以及Agent的回调都必须在同一个协程中执行，
// 一般是gosync.Loop所在的协程。Status()可以在任意协程中读取。
type DebuggerModel struct {
	target   Target
	agent    Agent
	settings Settings
	// executor 配置变化、计时器到期等来自其他协程的通知通过executor切回会话协程
	executor func(func())

	emptySourceMapAutoStepping bool

	debuggerEnabled bool
	// enableAcked enable命令已经得到运行时确认
	enableAcked bool
	// enableGeneration 每次开启或关闭都会加一，过期的enable确认直接忽略
	enableGeneration int
	// isPausing 已发送pause命令但还没有收到paused/resumed
	isPausing bool

	pausedDetails     *PausedDetails
	selectedCallFrame *CallFrame
	scripts           *scriptRegistry

	events             *listenerRegistry[constants.DebuggerEventType, Event]
	breakpointResolved *listenerRegistry[string, *Location]

	// pendingLiveEditCallback 热更新要求step into时，等下一次真正展示的暂停再回调
	pendingLiveEditCallback func()
	// consecutiveVetoedPauses 连续被拦截的暂停次数
	consecutiveVetoedPauses int

	// fileURLToNodeJSPath 合成的file URL到node.js文件路径的映射，设置断点时需要转换回去
	fileURLToNodeJSPath map[string]string

	skipAllPausesTimer *utils.TimeoutManager
	statusManager      *utils.StatusManager
	removeSettings     []func()
}

// Option DebuggerModel的可选配置
type Option func(d *DebuggerModel)

// WithExecutor 设置切回会话协程的方法
func WithExecutor(executor func(func())) Option {
	return func(d *DebuggerModel) {
		d.executor = executor
	}
}

// WithEmptySourceMapAutoStepping 开启以后才会发出BeforeDebuggerPaused，监听者可以拦截暂停
func WithEmptySourceMapAutoStepping(enabled bool) Option {
	return func(d *DebuggerModel) {
		d.emptySourceMapAutoStepping = enabled
	}
}

// NewDebuggerModel 创建调试会话，创建以后需要调用EnableDebugger
func NewDebuggerModel(target Target, agent Agent, settings Settings, options ...Option) *DebuggerModel {
	if settings == nil {
		settings = noSettings{}
	}
	d := &DebuggerModel{
		target:              target,
		agent:               agent,
		settings:            settings,
		executor:            func(f func()) { f() },
		scripts:             newScriptRegistry(),
		events:              newListenerRegistry[constants.DebuggerEventType, Event](),
		breakpointResolved:  newListenerRegistry[string, *Location](),
		fileURLToNodeJSPath: map[string]string{},
		statusManager:       utils.NewStatusManager(),
	}
	for _, option := range options {
		option(d)
	}
	d.skipAllPausesTimer = utils.NewTimeoutManager(d.executor)
	d.removeSettings = []func(){
		settings.AddChangeListener(SettingPauseOnExceptionEnabled, d.onSettingChanged(d.pauseOnExceptionStateChanged)),
		settings.AddChangeListener(SettingPauseOnCaughtException, d.onSettingChanged(d.pauseOnExceptionStateChanged)),
		settings.AddChangeListener(SettingEnableAsyncStackTraces, d.onSettingChanged(d.AsyncStackTracesStateChanged)),
	}
	return d
}

func (d *DebuggerModel) onSettingChanged(f func()) func() {
	return func() {
		d.executor(f)
	}
}

func (d *DebuggerModel) Target() Target {
	return d.target
}

// Status 当前生命周期状态，可以在任意协程读取
func (d *DebuggerModel) Status() constants.LifecycleStatus {
	return d.statusManager.Get()
}

func (d *DebuggerModel) updateStatus() {
	switch {
	case !d.debuggerEnabled:
		d.statusManager.Set(constants.Disabled)
	case !d.enableAcked:
		d.statusManager.Set(constants.Enabling)
	case d.pausedDetails != nil:
		d.statusManager.Set(constants.Paused)
	default:
		d.statusManager.Set(constants.Running)
	}
}

// AddEventListener 监听会话事件，返回的id用于取消监听
func (d *DebuggerModel) AddEventListener(eventType constants.DebuggerEventType, listener func(Event)) int {
	return d.events.add(eventType, listener)
}

func (d *DebuggerModel) RemoveEventListener(eventType constants.DebuggerEventType, id int) {
	d.events.remove(eventType, id)
}

func (d *DebuggerModel) dispatchEvent(event Event) {
	d.events.dispatch(event.Type(), event)
}

func (d *DebuggerModel) DebuggerEnabled() bool {
	return d.debuggerEnabled
}

// EnableDebugger 开启调试，已经开启时直接回调
func (d *DebuggerModel) EnableDebugger(callback func(err error)) {
	if d.debuggerEnabled {
		if callback != nil {
			callback(nil)
		}
		return
	}
	d.debuggerEnabled = true
	d.enableGeneration++
	generation := d.enableGeneration
	d.updateStatus()
	// agent可能同步回调，标记必须在发送命令之前设置
	d.agent.Enable(func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] enable debugger fail, err = %v", err)
		} else if d.debuggerEnabled && generation == d.enableGeneration {
			d.enableAcked = true
			d.updateStatus()
		}
		if callback != nil {
			callback(err)
		}
	})
	d.pauseOnExceptionStateChanged()
	d.AsyncStackTracesStateChanged()
	d.dispatchEvent(&DebuggerWasEnabledEvent{})
}

// DisableDebugger 关闭调试，清空暂停和脚本状态
func (d *DebuggerModel) DisableDebugger(callback func(err error)) {
	if !d.debuggerEnabled {
		if callback != nil {
			callback(nil)
		}
		return
	}
	d.agent.Disable(func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] disable debugger fail, err = %v", err)
		}
		if callback != nil {
			callback(err)
		}
	})
	d.debuggerEnabled = false
	d.enableAcked = false
	d.enableGeneration++
	d.isPausing = false
	d.consecutiveVetoedPauses = 0
	d.AsyncStackTracesStateChanged()
	d.GlobalObjectCleared()
	d.updateStatus()
	d.dispatchEvent(&DebuggerWasDisabledEvent{})
}

// SuspendModel 挂起会话，等同于关闭调试
func (d *DebuggerModel) SuspendModel(callback func(err error)) {
	d.DisableDebugger(callback)
}

// ResumeModel 恢复会话，等同于开启调试
func (d *DebuggerModel) ResumeModel(callback func(err error)) {
	d.EnableDebugger(callback)
}

// Dispose 取消对配置的监听
func (d *DebuggerModel) Dispose() {
	for _, remove := range d.removeSettings {
		remove()
	}
	d.removeSettings = nil
	d.skipAllPausesTimer.Cancel()
}

func (d *DebuggerModel) skipAllPauses(skip bool) {
	d.skipAllPausesTimer.Cancel()
	d.agent.SetSkipAllPauses(skip, d.logError("setSkipAllPauses"))
}

// SkipAllPausesUntilReloadOrTimeout 在timeout内忽略所有暂停，
// 如果在此之前页面重新加载，运行时会自己清掉这个标记，到期回调再设置一次false也没有影响
func (d *DebuggerModel) SkipAllPausesUntilReloadOrTimeout(timeout time.Duration) {
	d.skipAllPausesTimer.Cancel()
	d.agent.SetSkipAllPauses(true, d.logError("setSkipAllPauses"))
	d.skipAllPausesTimer.Start(timeout, func() {
		d.skipAllPauses(false)
	})
}

// PauseOnExceptionsState 根据配置计算遇到异常时的暂停策略
func (d *DebuggerModel) PauseOnExceptionsState() constants.PauseOnExceptionsState {
	if !d.settings.PauseOnExceptionEnabled() {
		return constants.DontPauseOnExceptions
	}
	if d.settings.PauseOnCaughtException() {
		return constants.PauseOnAllExceptions
	}
	return constants.PauseOnUncaughtExceptions
}

func (d *DebuggerModel) pauseOnExceptionStateChanged() {
	d.agent.SetPauseOnExceptions(d.PauseOnExceptionsState(), d.logError("setPauseOnExceptions"))
}

// AsyncStackTracesStateChanged 只有配置开启并且调试已开启时才收集异步栈
func (d *DebuggerModel) AsyncStackTracesStateChanged() {
	enabled := d.settings.EnableAsyncStackTraces() && d.debuggerEnabled
	depth := 0
	if enabled {
		depth = constants.MaxAsyncStackChainDepth
	}
	d.agent.SetAsyncCallStackDepth(depth, d.logError("setAsyncCallStackDepth"))
}

func (d *DebuggerModel) StepInto() {
	d.agent.StepInto(d.logError("stepInto"))
}

func (d *DebuggerModel) StepOver() {
	d.agent.StepOver(d.logError("stepOver"))
}

func (d *DebuggerModel) StepOut() {
	d.agent.StepOut(d.logError("stepOut"))
}

// Step 按类型单步
func (d *DebuggerModel) Step(stepType constants.StepType) {
	switch stepType {
	case constants.StepIn:
		d.StepInto()
	case constants.StepOut:
		d.StepOut()
	default:
		d.StepOver()
	}
}

// Resume 发送resume命令，是否真的恢复执行以resumed事件为准
func (d *DebuggerModel) Resume() {
	d.agent.Resume(d.logError("resume"))
	d.isPausing = false
}

func (d *DebuggerModel) Pause() {
	d.isPausing = true
	d.skipAllPauses(false)
	d.agent.Pause(d.logError("pause"))
}

func (d *DebuggerModel) SetBreakpointsActive(active bool) {
	d.agent.SetBreakpointsActive(active, d.logError("setBreakpointsActive"))
}

// SetBreakpointByURL 按URL设置断点
// 同一行上有多个脚本时(比如拼在一行的内联脚本)，列号不能小于这些脚本中最小的起始列。
// 成功时回调断点id和解析出来的位置，失败时回调空id和空列表。
func (d *DebuggerModel) SetBreakpointByURL(url string, lineNumber int, columnNumber int, condition string,
	callback func(breakpointID string, locations []*Location)) {
	minColumnNumber, found := 0, false
	for _, script := range d.ScriptsForSourceURL(url) {
		if script.LineOffset != lineNumber {
			continue
		}
		if !found || script.ColumnOffset < minColumnNumber {
			minColumnNumber = script.ColumnOffset
			found = true
		}
	}
	if found && columnNumber < minColumnNumber {
		columnNumber = minColumnNumber
	}
	// node.js的脚本以文件路径注册到运行时
	if nodeJSPath, ok := d.fileURLToNodeJSPath[url]; ok {
		url = nodeJSPath
	}

	d.agent.SetBreakpointByURL(&protocol.SetBreakpointByURLParams{
		LineNumber:   lineNumber,
		URL:          url,
		ColumnNumber: columnNumber,
		Condition:    condition,
	}, func(result *protocol.SetBreakpointByURLResult, err error) {
		if callback == nil {
			return
		}
		if err != nil || result == nil {
			if err != nil {
				logrus.Warnf("[DebuggerModel] set breakpoint by url fail, url = %s, line = %d, err = %v", url, lineNumber, err)
			}
			callback("", []*Location{})
			return
		}
		locations := make([]*Location, 0, len(result.Locations))
		for _, payload := range result.Locations {
			locations = append(locations, LocationFromPayload(d, payload))
		}
		callback(result.BreakpointID, locations)
	})
}

// SetBreakpointBySourceID 在精确的位置设置断点，不调整列号
func (d *DebuggerModel) SetBreakpointBySourceID(rawLocation *Location, condition string,
	callback func(breakpointID string, locations []*Location)) {
	d.agent.SetBreakpoint(&protocol.SetBreakpointParams{
		Location:  rawLocation.Payload(),
		Condition: condition,
	}, func(result *protocol.SetBreakpointResult, err error) {
		if callback == nil {
			return
		}
		if err != nil || result == nil || result.ActualLocation == nil {
			callback("", []*Location{})
			return
		}
		callback(result.BreakpointID, []*Location{LocationFromPayload(d, *result.ActualLocation)})
	})
}

// RemoveBreakpoint 无论成功与否都会回调
func (d *DebuggerModel) RemoveBreakpoint(breakpointID string, callback func()) {
	d.agent.RemoveBreakpoint(breakpointID, func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] Failed to remove breakpoint: %v", err)
		}
		if callback != nil {
			callback()
		}
	})
}

// AddBreakpointListener 监听某个断点的解析事件，返回的id用于取消监听
func (d *DebuggerModel) AddBreakpointListener(breakpointID string, listener func(location *Location)) int {
	return d.breakpointResolved.add(breakpointID, listener)
}

func (d *DebuggerModel) RemoveBreakpointListener(breakpointID string, listenerID int) {
	d.breakpointResolved.remove(breakpointID, listenerID)
}

func (d *DebuggerModel) breakpointResolvedEvent(breakpointID string, location protocol.Location) {
	d.breakpointResolved.dispatch(breakpointID, LocationFromPayload(d, location))
}

// GlobalObjectCleared 页面导航或者关闭调试时清空状态
func (d *DebuggerModel) GlobalObjectCleared() {
	d.setDebuggerPausedDetails(nil)
	d.reset()
	// 等待中的热更新不会再有暂停可以确认了
	if callback := d.pendingLiveEditCallback; callback != nil {
		d.pendingLiveEditCallback = nil
		callback()
	}
	d.dispatchEvent(&GlobalObjectClearedEvent{})
}

func (d *DebuggerModel) reset() {
	d.scripts.clear()
	d.fileURLToNodeJSPath = map[string]string{}
}

// Scripts 按注册顺序返回所有脚本
func (d *DebuggerModel) Scripts() []*Script {
	return d.scripts.all()
}

func (d *DebuggerModel) ScriptForID(scriptID string) *Script {
	return d.scripts.forID(scriptID)
}

func (d *DebuggerModel) ScriptsForSourceURL(sourceURL string) []*Script {
	return d.scripts.forURL(sourceURL)
}

// SetScriptSource 热更新脚本源码
func (d *DebuggerModel) SetScriptSource(scriptID string, newSource string,
	callback func(err error, exceptionDetails *protocol.ExceptionDetails)) {
	if callback == nil {
		callback = func(error, *protocol.ExceptionDetails) {}
	}
	script := d.ScriptForID(scriptID)
	if script == nil {
		callback(e.ErrScriptNotFound, nil)
		return
	}
	script.editSource(newSource, func(result *protocol.SetScriptSourceResult, err error) {
		d.didEditScriptSource(callback, result, err)
	})
}

func (d *DebuggerModel) didEditScriptSource(callback func(error, *protocol.ExceptionDetails),
	result *protocol.SetScriptSourceResult, err error) {
	var exceptionDetails *protocol.ExceptionDetails
	if result != nil {
		exceptionDetails = result.ExceptionDetails
	}
	// 栈被修改过，需要step into以后等待新的暂停再确认
	if err == nil && result != nil && result.StackChanged {
		// 上一次热更新还没等到暂停，先回调它
		if previous := d.pendingLiveEditCallback; previous != nil {
			d.pendingLiveEditCallback = nil
			previous()
		}
		d.StepInto()
		d.pendingLiveEditCallback = func() {
			callback(err, exceptionDetails)
		}
		return
	}
	if err == nil && result != nil && len(result.CallFrames) != 0 && d.pausedDetails != nil {
		details := d.pausedDetails
		d.pausedScript(result.CallFrames, details.Reason, details.AuxData, details.BreakpointIDs, result.AsyncStackTrace)
	}
	callback(err, exceptionDetails)
}

// CallFrames 暂停时的调用帧，运行中返回nil
func (d *DebuggerModel) CallFrames() []*CallFrame {
	if d.pausedDetails == nil {
		return nil
	}
	return d.pausedDetails.CallFrames
}

// DebuggerPausedDetails 运行中返回nil
func (d *DebuggerModel) DebuggerPausedDetails() *PausedDetails {
	return d.pausedDetails
}

func (d *DebuggerModel) IsPaused() bool {
	return d.pausedDetails != nil
}

func (d *DebuggerModel) IsPausing() bool {
	return d.isPausing
}

// setDebuggerPausedDetails 设置当前暂停信息，返回false说明暂停被拦截，调用方需要step into
func (d *DebuggerModel) setDebuggerPausedDetails(details *PausedDetails) bool {
	d.isPausing = false
	d.pausedDetails = details
	defer d.updateStatus()
	if details != nil {
		if d.emptySourceMapAutoStepping && d.consecutiveVetoedPauses < constants.MaxConsecutiveVetoedPauses {
			before := &BeforeDebuggerPausedEvent{Details: details}
			d.dispatchEvent(before)
			if before.Vetoed() {
				d.consecutiveVetoedPauses++
				d.selectedCallFrame = nil
				return false
			}
		} else if d.consecutiveVetoedPauses >= constants.MaxConsecutiveVetoedPauses {
			logrus.Warnf("[DebuggerModel] %d pauses vetoed in a row, surfacing pause", d.consecutiveVetoedPauses)
		}
		d.consecutiveVetoedPauses = 0
		d.dispatchEvent(&DebuggerPausedEvent{Details: details})
	}
	if details != nil && len(details.CallFrames) != 0 {
		d.SetSelectedCallFrame(details.CallFrames[0])
	} else {
		d.SetSelectedCallFrame(nil)
	}
	return true
}

func (d *DebuggerModel) pausedScript(callFrames []protocol.CallFrame, reason constants.PauseReason,
	auxData json.RawMessage, breakpointIDs []string, asyncStackTrace *protocol.StackTrace) {
	details := NewPausedDetails(d, callFrames, reason, auxData, breakpointIDs, asyncStackTrace)
	if d.setDebuggerPausedDetails(details) {
		if callback := d.pendingLiveEditCallback; callback != nil {
			d.pendingLiveEditCallback = nil
			callback()
		}
	} else {
		d.agent.StepInto(d.logError("stepInto"))
	}
}

func (d *DebuggerModel) resumedScript() {
	d.setDebuggerPausedDetails(nil)
	d.dispatchEvent(&DebuggerResumedEvent{})
}

func (d *DebuggerModel) parsedScriptSource(event *protocol.ScriptParsedEvent, hasSyntaxError bool) *Script {
	sourceURL := event.URL
	// node.js直接使用文件路径，转换成file URL并记录映射
	if d.target.IsNodeJS() && len(sourceURL) != 0 && sourceURL[0] == '/' {
		nodeJSPath := sourceURL
		sourceURL = platformPathToURL(nodeJSPath)
		d.fileURLToNodeJSPath[sourceURL] = nodeJSPath
	}
	script := newScript(d, event, sourceURL, event.IsLiveEdit && !hasSyntaxError)
	d.scripts.register(script)
	if !hasSyntaxError {
		d.dispatchEvent(&ParsedScriptSourceEvent{Script: script})
	} else {
		d.dispatchEvent(&FailedToParseScriptSourceEvent{Script: script})
	}
	return script
}

// NodeJSPathForURL 合成URL对应的文件路径
func (d *DebuggerModel) NodeJSPathForURL(url string) (string, bool) {
	path, ok := d.fileURLToNodeJSPath[url]
	return path, ok
}

// CreateRawLocation 有URL的脚本按URL解析，否则直接使用脚本id
func (d *DebuggerModel) CreateRawLocation(script *Script, lineNumber int, columnNumber int) *Location {
	if script.SourceURL != "" {
		return d.CreateRawLocationByURL(script.SourceURL, lineNumber, columnNumber)
	}
	return NewLocation(d, script.ScriptID, lineNumber, columnNumber)
}

// CreateRawLocationByURL 在URL下的脚本中找到包含该位置的脚本，
// 都不包含时使用第一个注册的脚本，URL下没有脚本时返回nil
func (d *DebuggerModel) CreateRawLocationByURL(sourceURL string, lineNumber int, columnNumber int) *Location {
	var closestScript *Script
	for _, script := range d.ScriptsForSourceURL(sourceURL) {
		if closestScript == nil {
			closestScript = script
		}
		if script.ContainsLocation(lineNumber, columnNumber) {
			closestScript = script
			break
		}
	}
	if closestScript == nil {
		return nil
	}
	return NewLocation(d, closestScript.ScriptID, lineNumber, columnNumber)
}

func (d *DebuggerModel) CreateRawLocationByScriptID(scriptID string, lineNumber int, columnNumber int) *Location {
	script := d.ScriptForID(scriptID)
	if script == nil {
		return nil
	}
	return d.CreateRawLocation(script, lineNumber, columnNumber)
}

// CreateRawLocationsByStackTrace 展开整条异步栈，脚本找不到的帧会被跳过
func (d *DebuggerModel) CreateRawLocationsByStackTrace(stackTrace *protocol.StackTrace) []*Location {
	var rawLocations []*Location
	for stack := stackTrace; stack != nil; stack = stack.Parent {
		for _, frame := range stack.CallFrames {
			rawLocation := d.CreateRawLocationByScriptID(frame.ScriptID, frame.LineNumber, frame.ColumnNumber)
			if rawLocation != nil {
				rawLocations = append(rawLocations, rawLocation)
			}
		}
	}
	return rawLocations
}

// SetSelectedCallFrame 选中某个调用帧，nil表示取消选中
func (d *DebuggerModel) SetSelectedCallFrame(callFrame *CallFrame) {
	d.selectedCallFrame = callFrame
	if callFrame == nil {
		return
	}
	d.dispatchEvent(&CallFrameSelectedEvent{CallFrame: callFrame})
}

func (d *DebuggerModel) SelectedCallFrame() *CallFrame {
	return d.selectedCallFrame
}

// EvaluateOnSelectedCallFrame 在选中的调用帧上求值
func (d *DebuggerModel) EvaluateOnSelectedCallFrame(options EvaluateOptions, callback EvaluateCallback) {
	callFrame := d.selectedCallFrame
	if callFrame == nil {
		callback(nil, nil, e.ErrNoSelectedCallFrame)
		return
	}
	callFrame.Evaluate(options, callback)
}

// SetVariableValue 修改作用域中的变量
func (d *DebuggerModel) SetVariableValue(scopeNumber int, variableName string, newValue protocol.CallArgument,
	callFrameID string, callback func(err error)) {
	d.agent.SetVariableValue(&protocol.SetVariableValueParams{
		ScopeNumber:  scopeNumber,
		VariableName: variableName,
		NewValue:     newValue,
		CallFrameID:  callFrameID,
	}, func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] set variable value fail, name = %s, err = %v", variableName, err)
		}
		if callback != nil {
			callback(err)
		}
	})
}

// SetBlackboxPatterns 设置单步时跳过的脚本URL模式，回调是否设置成功
func (d *DebuggerModel) SetBlackboxPatterns(patterns []string, callback func(ok bool)) {
	d.agent.SetBlackboxPatterns(utils.DedupeStrings(patterns), func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] set blackbox patterns fail, err = %v", err)
		}
		if callback != nil {
			callback(err == nil)
		}
	})
}

// logError 不关心结果的命令只记录错误
func (d *DebuggerModel) logError(command string) func(err error) {
	return func(err error) {
		if err != nil {
			logrus.Errorf("[DebuggerModel] %s fail, err = %v", command, err)
		}
	}
}
