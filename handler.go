package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/debugger"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/fansqz/inspector-debugger/settings"
	"github.com/fansqz/inspector-debugger/utils"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// threadID 运行时只有一个被调试的线程
	threadID = 1

	exceptionFilterAll      = "all"
	exceptionFilterUncaught = "uncaught"
)

// DebugSession 一个DAP连接对应的调试会话，所有连接共享同一个Inspector
//
// 请求在读协程中解析，访问model的部分全部提交到会话协程执行，
// 响应和事件可能从两个协程发出，send需要加锁。
type DebugSession struct {
	id   string
	conn net.Conn
	// rw is used to read requests and write events/responses
	rw        *bufio.ReadWriter
	sendMutex sync.Mutex

	inspector  *Inspector
	references *ReferenceUtil

	// 以下字段只在会话协程中访问
	listenerIDs      map[constants.DebuggerEventType]int
	breakpoints      map[string][]*sessionBreakpoint
	// generations 每个源文件的setBreakpoints请求序号，过期请求设置出的断点需要删除
	generations      map[string]int
	nextBreakpointID int
	stepping         bool
}

// sessionBreakpoint DAP断点和运行时断点的对应关系
type sessionBreakpoint struct {
	dapID        int
	breakpointID string
	listenerID   int
	source       *dap.Source
}

func NewDebugSession(conn net.Conn, inspector *Inspector) *DebugSession {
	return &DebugSession{
		id:               utils.GetUUID(),
		conn:             conn,
		rw:               bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		inspector:        inspector,
		references:       NewReferenceUtil(),
		listenerIDs:      map[constants.DebuggerEventType]int{},
		breakpoints:      map[string][]*sessionBreakpoint{},
		generations:      map[string]int{},
		nextBreakpointID: 1,
	}
}

// handleConnection handles a connection from a single client.
// It reads and decodes the incoming data and dispatches it
// until the client disconnects.
func handleConnection(ctx context.Context, conn net.Conn, inspector *Inspector) {
	debugSession := NewDebugSession(conn, inspector)
	logrus.Infof("[DAP] session %s connected from %s", debugSession.id, conn.RemoteAddr())
	if err := inspector.Call(ctx, debugSession.attachListeners); err != nil {
		logrus.Errorf("[DAP] attach session %s fail, err = %v", debugSession.id, err)
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		err := debugSession.handleRequest()
		if err == nil {
			continue
		}
		var fieldErr *dap.DecodeProtocolMessageFieldError
		if errors.As(err, &fieldErr) {
			// 无法识别的请求，已经从连接中读出，继续处理后续请求
			debugSession.send(newErrorResponse(fieldErr.Seq, fieldErr.FieldValue,
				fmt.Sprintf("%s is not yet supported", fieldErr.FieldValue)))
			continue
		}
		if err != io.EOF && !errors.Is(err, net.ErrClosed) {
			logrus.Warnf("[DAP] session %s read fail, err = %v", debugSession.id, err)
		}
		break
	}

	logrus.Infof("[DAP] closing session %s", debugSession.id)
	inspector.Post(debugSession.detachListeners)
	_ = conn.Close()
}

func (d *DebugSession) handleRequest() error {
	request, err := dap.ReadProtocolMessage(d.rw.Reader)
	if err != nil {
		return err
	}
	d.dispatchRequest(request)
	return nil
}

func (d *DebugSession) dispatchRequest(request dap.Message) {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		d.onInitializeRequest(request)
	case *dap.AttachRequest:
		d.onAttachRequest(request.Request)
	case *dap.LaunchRequest:
		d.onAttachRequest(request.Request)
	case *dap.SetBreakpointsRequest:
		d.onSetBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		d.onSetExceptionBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		d.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		d.onThreadsRequest(request)
	case *dap.ContinueRequest:
		d.onContinueRequest(request)
	case *dap.NextRequest:
		d.onStepRequest(request.Request, constants.StepOver, &dap.NextResponse{})
	case *dap.StepInRequest:
		d.onStepRequest(request.Request, constants.StepIn, &dap.StepInResponse{})
	case *dap.StepOutRequest:
		d.onStepRequest(request.Request, constants.StepOut, &dap.StepOutResponse{})
	case *dap.PauseRequest:
		d.onPauseRequest(request)
	case *dap.StackTraceRequest:
		d.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		d.onScopesRequest(request)
	case *dap.VariablesRequest:
		d.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		d.onEvaluateRequest(request)
	case *dap.SetVariableRequest:
		d.onSetVariableRequest(request)
	case *dap.RestartFrameRequest:
		d.onRestartFrameRequest(request)
	case *dap.LoadedSourcesRequest:
		d.onLoadedSourcesRequest(request)
	case *dap.DisconnectRequest:
		d.onDisconnectRequest(request)
	default:
		if req, ok := request.(dap.RequestMessage); ok {
			baseReq := req.GetRequest()
			d.send(newErrorResponse(baseReq.Seq, baseReq.Command, fmt.Sprintf("%s is not yet supported", baseReq.Command)))
			return
		}
		logrus.Warnf("[DAP] unable to process %#v", request)
	}
}

// send Message响应给客户端
func (d *DebugSession) send(message dap.Message) {
	d.sendMutex.Lock()
	defer d.sendMutex.Unlock()
	if err := dap.WriteProtocolMessage(d.rw.Writer, message); err != nil {
		logrus.Warnf("[DAP] session %s write fail, err = %v", d.id, err)
		return
	}
	_ = d.rw.Flush()
}

func (d *DebugSession) sendError(request dap.Request, err error) {
	d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
}

// onLoop 在会话协程中处理请求
func (d *DebugSession) onLoop(request dap.Request, task func(model *debugger.DebuggerModel)) {
	model := d.inspector.Model()
	if !d.inspector.Post(func() { task(model) }) {
		d.send(newErrorResponse(request.Seq, request.Command, "debug session is closed"))
	}
}

// -----------------------------------------------------------------------
// Model events

func (d *DebugSession) attachListeners() {
	model := d.inspector.Model()
	d.inspector.addSession()
	d.listenerIDs[constants.DebuggerPaused] = model.AddEventListener(constants.DebuggerPaused, d.onDebuggerPaused)
	d.listenerIDs[constants.DebuggerResumed] = model.AddEventListener(constants.DebuggerResumed, d.onDebuggerResumed)
	d.listenerIDs[constants.ParsedScriptSource] = model.AddEventListener(constants.ParsedScriptSource, d.onParsedScriptSource)
	d.listenerIDs[constants.DebuggerWasDisabled] = model.AddEventListener(constants.DebuggerWasDisabled, d.onDebuggerWasDisabled)
}

func (d *DebugSession) detachListeners() {
	model := d.inspector.Model()
	for eventType, id := range d.listenerIDs {
		model.RemoveEventListener(eventType, id)
	}
	d.listenerIDs = map[constants.DebuggerEventType]int{}
	d.inspector.removeSession()
	// 还没有回调的setBreakpoints全部作废
	for scriptURL := range d.generations {
		d.generations[scriptURL]++
	}
	for _, breakpoints := range d.breakpoints {
		for _, bp := range breakpoints {
			model.RemoveBreakpointListener(bp.breakpointID, bp.listenerID)
			model.RemoveBreakpoint(bp.breakpointID, nil)
		}
	}
	d.breakpoints = map[string][]*sessionBreakpoint{}
}

func (d *DebugSession) onDebuggerPaused(event debugger.Event) {
	details := event.(*debugger.DebuggerPausedEvent).Details
	d.references.Reset()
	stopped := &dap.StoppedEvent{Event: *newEvent("stopped")}
	stopped.Body.Reason = stoppedReason(details, d.stepping)
	stopped.Body.Description = string(details.Reason)
	stopped.Body.ThreadId = threadID
	stopped.Body.AllThreadsStopped = true
	if exception := details.Exception(); exception != nil {
		stopped.Body.Text = exception.DisplayValue()
	}
	for _, breakpointID := range details.BreakpointIDs {
		if bp := d.findBreakpoint(breakpointID); bp != nil {
			stopped.Body.HitBreakpointIds = append(stopped.Body.HitBreakpointIds, bp.dapID)
		}
	}
	d.stepping = false
	d.send(stopped)
}

// stoppedReason 命中断点优先，其次是异常，单步以后的暂停算作step
func stoppedReason(details *debugger.PausedDetails, stepping bool) string {
	switch {
	case len(details.BreakpointIDs) != 0:
		return "breakpoint"
	case details.Reason == constants.PauseReasonException || details.Reason == constants.PauseReasonPromiseRejection:
		return "exception"
	case stepping:
		return "step"
	default:
		return "pause"
	}
}

func (d *DebugSession) onDebuggerResumed(debugger.Event) {
	d.references.Reset()
	continued := &dap.ContinuedEvent{Event: *newEvent("continued")}
	continued.Body.ThreadId = threadID
	continued.Body.AllThreadsContinued = true
	d.send(continued)
}

func (d *DebugSession) onParsedScriptSource(event debugger.Event) {
	script := event.(*debugger.ParsedScriptSourceEvent).Script
	if script.IsAnonymousScript() {
		return
	}
	loaded := &dap.LoadedSourceEvent{Event: *newEvent("loadedSource")}
	loaded.Body.Reason = "new"
	loaded.Body.Source = *d.sourceForScript(script)
	d.send(loaded)
}

func (d *DebugSession) onDebuggerWasDisabled(debugger.Event) {
	d.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}

// sourceForScript node.js的脚本使用原始的文件路径
func (d *DebugSession) sourceForScript(script *debugger.Script) *dap.Source {
	if script == nil {
		return nil
	}
	if script.IsAnonymousScript() {
		return &dap.Source{Name: "VM" + script.ScriptID}
	}
	sourcePath := script.SourceURL
	if nodeJSPath, ok := d.inspector.Model().NodeJSPathForURL(script.SourceURL); ok {
		sourcePath = nodeJSPath
	}
	name := path.Base(sourcePath)
	if u, err := url.Parse(sourcePath); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	return &dap.Source{Name: name, Path: sourcePath}
}

// sourceURL 文件路径转换成file URL，其它的原样作为URL
func sourceURL(source dap.Source) string {
	if strings.HasPrefix(source.Path, "/") {
		u := url.URL{Scheme: "file", Path: source.Path}
		return u.String()
	}
	if source.Path != "" {
		return source.Path
	}
	return source.Name
}

func (d *DebugSession) findBreakpoint(breakpointID string) *sessionBreakpoint {
	for _, breakpoints := range d.breakpoints {
		for _, bp := range breakpoints {
			if bp.breakpointID == breakpointID {
				return bp
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------
// Request Handlers

func (d *DebugSession) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsConditionalBreakpoints = true
	response.Body.SupportsEvaluateForHovers = true
	response.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{
		{Filter: exceptionFilterAll, Label: "Caught Exceptions"},
		{Filter: exceptionFilterUncaught, Label: "Uncaught Exceptions"},
	}
	response.Body.SupportsSetVariable = true
	response.Body.SupportsRestartFrame = true
	response.Body.SupportsLoadedSourcesRequest = true
	d.send(response)
	// 客户端收到initialized以后开始发送断点等配置，以configurationDone结束
	d.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

// onAttachRequest attach和launch都只是开启调试，运行时由外部启动
func (d *DebugSession) onAttachRequest(request dap.Request) {
	d.onLoop(request, func(model *debugger.DebuggerModel) {
		model.EnableDebugger(func(err error) {
			if err != nil {
				d.sendError(request, err)
				return
			}
			d.send(newResponse(request.Seq, request.Command))
		})
	})
}

func (d *DebugSession) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	source := request.Arguments.Source
	requested := request.Arguments.Breakpoints
	scriptURL := sourceURL(source)
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		for _, bp := range d.breakpoints[scriptURL] {
			model.RemoveBreakpointListener(bp.breakpointID, bp.listenerID)
			model.RemoveBreakpoint(bp.breakpointID, nil)
		}
		delete(d.breakpoints, scriptURL)
		d.generations[scriptURL]++
		generation := d.generations[scriptURL]

		response := &dap.SetBreakpointsResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.Breakpoints = make([]dap.Breakpoint, len(requested))
		if len(requested) == 0 {
			d.send(response)
			return
		}
		remaining := len(requested)
		for i, sourceBreakpoint := range requested {
			i := i
			column := 0
			if sourceBreakpoint.Column > 0 {
				column = sourceBreakpoint.Column - 1
			}
			dapID := d.nextBreakpointID
			d.nextBreakpointID++
			response.Body.Breakpoints[i] = dap.Breakpoint{
				Id:     dapID,
				Source: &source,
				Line:   sourceBreakpoint.Line,
			}
			model.SetBreakpointByURL(scriptURL, sourceBreakpoint.Line-1, column, sourceBreakpoint.Condition,
				func(breakpointID string, locations []*debugger.Location) {
					breakpoint := &response.Body.Breakpoints[i]
					switch {
					case breakpointID == "":
						breakpoint.Message = "failed to set breakpoint"
					case generation != d.generations[scriptURL]:
						// 之后的请求已经替换了这个文件的断点
						model.RemoveBreakpoint(breakpointID, nil)
						breakpoint.Message = "breakpoint was replaced"
					default:
						bp := &sessionBreakpoint{dapID: dapID, breakpointID: breakpointID, source: &source}
						bp.listenerID = model.AddBreakpointListener(breakpointID, func(location *debugger.Location) {
							d.onBreakpointResolved(bp, location)
						})
						d.breakpoints[scriptURL] = append(d.breakpoints[scriptURL], bp)
						if len(locations) != 0 {
							breakpoint.Verified = true
							breakpoint.Line = locations[0].LineNumber + 1
							breakpoint.Column = locations[0].ColumnNumber + 1
						}
					}
					remaining--
					if remaining == 0 {
						d.send(response)
					}
				})
		}
	})
}

func (d *DebugSession) onBreakpointResolved(bp *sessionBreakpoint, location *debugger.Location) {
	event := &dap.BreakpointEvent{Event: *newEvent("breakpoint")}
	event.Body.Reason = "changed"
	event.Body.Breakpoint = dap.Breakpoint{
		Id:       bp.dapID,
		Verified: true,
		Source:   bp.source,
		Line:     location.LineNumber + 1,
		Column:   location.ColumnNumber + 1,
	}
	d.send(event)
}

// onSetExceptionBreakpointsRequest 异常断点保存在配置中，由配置变化驱动会话
func (d *DebugSession) onSetExceptionBreakpointsRequest(request *dap.SetExceptionBreakpointsRequest) {
	filters := request.Arguments.Filters
	d.inspector.Settings().Set(func(doc *settings.Document) {
		doc.PauseOnExceptionEnabled = len(filters) != 0
		doc.PauseOnCaughtException = false
		for _, filter := range filters {
			if filter == exceptionFilterAll {
				doc.PauseOnCaughtException = true
			}
		}
	})
	response := &dap.SetExceptionBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	d.onLoop(request.Request, func(*debugger.DebuggerModel) {
		d.inspector.RunIfWaitingForDebugger()
		response := &dap.ConfigurationDoneResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		d.send(response)
	})
}

func (d *DebugSession) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Threads = []dap.Thread{{Id: threadID, Name: "Main Thread"}}
	d.send(response)
}

func (d *DebugSession) onContinueRequest(request *dap.ContinueRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		if !model.IsPaused() {
			d.sendError(request.Request, e.ErrDebuggerNotPaused)
			return
		}
		model.Resume()
		response := &dap.ContinueResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.AllThreadsContinued = true
		d.send(response)
	})
}

// onStepRequest next、stepIn、stepOut的响应都只有Response
func (d *DebugSession) onStepRequest(request dap.Request, stepType constants.StepType, response dap.ResponseMessage) {
	d.onLoop(request, func(model *debugger.DebuggerModel) {
		if !model.IsPaused() {
			d.sendError(request, e.ErrDebuggerNotPaused)
			return
		}
		d.stepping = true
		model.Step(stepType)
		*response.GetResponse() = *newResponse(request.Seq, request.Command)
		d.send(response)
	})
}

func (d *DebugSession) onPauseRequest(request *dap.PauseRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		d.stepping = false
		model.Pause()
		response := &dap.PauseResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		d.send(response)
	})
}

// onStackTraceRequest 调用帧的id从1开始，异步栈的每一段前面插入一个label帧
func (d *DebugSession) onStackTraceRequest(request *dap.StackTraceRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		details := model.DebuggerPausedDetails()
		if details == nil {
			d.sendError(request.Request, e.ErrDebuggerNotPaused)
			return
		}
		var frames []dap.StackFrame
		for i, callFrame := range details.CallFrames {
			location := callFrame.Location()
			frames = append(frames, dap.StackFrame{
				Id:     i + 1,
				Name:   functionName(callFrame.FunctionName()),
				Source: d.sourceForScript(callFrame.Script()),
				Line:   location.LineNumber + 1,
				Column: location.ColumnNumber + 1,
			})
		}
		for stackTrace := details.AsyncStackTrace; stackTrace != nil; stackTrace = stackTrace.Parent {
			description := stackTrace.Description
			if description == "" {
				description = "async"
			}
			frames = append(frames, dap.StackFrame{
				Id:               len(frames) + 1,
				Name:             description,
				PresentationHint: "label",
			})
			for _, asyncFrame := range stackTrace.CallFrames {
				frames = append(frames, dap.StackFrame{
					Id:               len(frames) + 1,
					Name:             functionName(asyncFrame.FunctionName),
					Source:           d.sourceForScript(model.ScriptForID(asyncFrame.ScriptID)),
					Line:             asyncFrame.LineNumber + 1,
					Column:           asyncFrame.ColumnNumber + 1,
					PresentationHint: "subtle",
				})
			}
		}

		total := len(frames)
		start := min(request.Arguments.StartFrame, total)
		end := total
		if request.Arguments.Levels > 0 {
			end = min(start+request.Arguments.Levels, total)
		}
		response := &dap.StackTraceResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body = dap.StackTraceResponseBody{
			StackFrames: append([]dap.StackFrame{}, frames[start:end]...),
			TotalFrames: total,
		}
		d.send(response)
	})
}

func functionName(name string) string {
	if name == "" {
		return "(anonymous)"
	}
	return name
}

// callFrame DAP的帧id转换成调用帧，异步栈中的帧没有作用域
func callFrame(model *debugger.DebuggerModel, frameID int) (*debugger.CallFrame, error) {
	callFrames := model.CallFrames()
	if callFrames == nil {
		return nil, e.ErrDebuggerNotPaused
	}
	if frameID < 1 || frameID > len(callFrames) {
		return nil, fmt.Errorf("invalid frame id %d", frameID)
	}
	return callFrames[frameID-1], nil
}

func (d *DebugSession) onScopesRequest(request *dap.ScopesRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		frame, err := callFrame(model, request.Arguments.FrameId)
		if err != nil {
			d.sendError(request.Request, err)
			return
		}
		scopes := []dap.Scope{}
		for _, scope := range frame.ScopeChain() {
			reference, err := d.references.CreateVariableReference(
				NewScopeReferenceStruct(request.Arguments.FrameId-1, scope.Ordinal()))
			if err != nil {
				d.sendError(request.Request, err)
				return
			}
			name := scope.Name()
			if name == "" {
				name = string(scope.Type())
			}
			scopes = append(scopes, dap.Scope{
				Name:               name,
				PresentationHint:   scopePresentationHint(scope.Type()),
				VariablesReference: reference,
				Expensive:          scope.Type() == constants.ScopeGlobal,
			})
		}
		response := &dap.ScopesResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body = dap.ScopesResponseBody{Scopes: scopes}
		d.send(response)
	})
}

func scopePresentationHint(scopeType constants.ScopeType) string {
	if scopeType == constants.ScopeLocal {
		return "locals"
	}
	return ""
}

// resolveReference 引用对应的远程对象，作用域引用同时返回作用域
func (d *DebugSession) resolveReference(model *debugger.DebuggerModel, reference int) (*debugger.RemoteObject, *debugger.Scope, error) {
	refStruct, err := d.references.ParseVariableReference(reference)
	if err != nil {
		return nil, nil, err
	}
	switch refStruct.Type {
	case ScopeType:
		frame, err := callFrame(model, refStruct.FrameIndex+1)
		if err != nil {
			return nil, nil, err
		}
		scopeChain := frame.ScopeChain()
		if refStruct.ScopeIndex >= len(scopeChain) {
			return nil, nil, fmt.Errorf("%w: %d", e.ErrUnknownReference, reference)
		}
		scope := scopeChain[refStruct.ScopeIndex]
		return scope.Object(), scope, nil
	case ObjectType:
		return debugger.NewRemoteObject(model, protocol.RemoteObject{Type: "object", ObjectID: refStruct.ObjectID}), nil, nil
	}
	return nil, nil, fmt.Errorf("%w: %d", e.ErrUnknownReference, reference)
}

// variable 远程对象转换成DAP变量，可以展开的对象分配引用
func (d *DebugSession) variable(model *debugger.DebuggerModel, name string, payload *protocol.RemoteObject) dap.Variable {
	if payload == nil {
		return dap.Variable{Name: name, Value: "undefined", Type: "undefined"}
	}
	object := debugger.NewRemoteObject(model, *payload)
	variable := dap.Variable{
		Name:  name,
		Value: object.DisplayValue(),
		Type:  object.Type(),
	}
	if object.HasChildren() {
		reference, err := d.references.CreateVariableReference(NewObjectReferenceStruct(object.ObjectID()))
		if err == nil {
			variable.VariablesReference = reference
		}
	}
	return variable
}

func (d *DebugSession) onVariablesRequest(request *dap.VariablesRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		object, scope, err := d.resolveReference(model, request.Arguments.VariablesReference)
		if err != nil {
			d.sendError(request.Request, err)
			return
		}
		// 作用域只列出自己的绑定，对象需要带上原型链上的访问器
		ownProperties := scope != nil
		object.Properties(ownProperties, func(properties []protocol.PropertyDescriptor, err error) {
			if err != nil {
				d.sendError(request.Request, err)
				return
			}
			variables := []dap.Variable{}
			for _, property := range properties {
				variables = append(variables, d.variable(model, property.Name, property.Value))
			}
			response := &dap.VariablesResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			response.Body = dap.VariablesResponseBody{Variables: variables}
			d.send(response)
		})
	})
}

func (d *DebugSession) onEvaluateRequest(request *dap.EvaluateRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		options := debugger.EvaluateOptions{
			Expression:            request.Arguments.Expression,
			ObjectGroup:           utils.NewObjectGroup("dap-" + d.id),
			IncludeCommandLineAPI: request.Arguments.Context == "repl",
			Silent:                request.Arguments.Context == "hover",
		}
		callback := func(result *debugger.RemoteObject, exceptionDetails *protocol.ExceptionDetails, err error) {
			if err != nil {
				d.sendError(request.Request, err)
				return
			}
			if exceptionDetails != nil {
				message := exceptionDetails.Text
				if exceptionDetails.Exception != nil && exceptionDetails.Exception.Description != "" {
					message = exceptionDetails.Exception.Description
				}
				d.send(newErrorResponse(request.Seq, request.Command, message))
				return
			}
			response := &dap.EvaluateResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			if result != nil {
				payload := result.Payload()
				variable := d.variable(model, "", &payload)
				response.Body.Result = variable.Value
				response.Body.Type = variable.Type
				response.Body.VariablesReference = variable.VariablesReference
			}
			d.send(response)
		}
		if request.Arguments.FrameId == 0 {
			model.EvaluateOnSelectedCallFrame(options, callback)
			return
		}
		frame, err := callFrame(model, request.Arguments.FrameId)
		if err != nil {
			d.sendError(request.Request, err)
			return
		}
		frame.Evaluate(options, callback)
	})
}

// callArgument 把客户端输入的值转换成调用参数
// 合法的JSON直接使用，NaN、Infinity一类使用unserializableValue，其余作为字符串
func callArgument(value string) protocol.CallArgument {
	value = strings.TrimSpace(value)
	switch value {
	case "NaN", "Infinity", "-Infinity", "-0":
		return protocol.CallArgument{UnserializableValue: value}
	case "undefined":
		return protocol.CallArgument{}
	}
	if gjson.Valid(value) {
		return protocol.CallArgument{Value: json.RawMessage(value)}
	}
	raw, _ := json.Marshal(value)
	return protocol.CallArgument{Value: raw}
}

func (d *DebugSession) onSetVariableRequest(request *dap.SetVariableRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		object, scope, err := d.resolveReference(model, request.Arguments.VariablesReference)
		if err != nil {
			d.sendError(request.Request, err)
			return
		}
		if scope == nil {
			d.send(newErrorResponse(request.Seq, request.Command, "only scope variables can be set"))
			return
		}
		value := request.Arguments.Value
		object.SetVariableValue(request.Arguments.Name, callArgument(value), func(err error) {
			if err != nil {
				d.sendError(request.Request, err)
				return
			}
			response := &dap.SetVariableResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			response.Body.Value = value
			d.send(response)
		})
	})
}

func (d *DebugSession) onRestartFrameRequest(request *dap.RestartFrameRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		frame, err := callFrame(model, request.Arguments.FrameId)
		if err != nil {
			d.sendError(request.Request, err)
			return
		}
		d.stepping = true
		frame.Restart(func(err error) {
			if err != nil {
				d.sendError(request.Request, err)
				return
			}
			response := &dap.RestartFrameResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			d.send(response)
		})
	})
}

func (d *DebugSession) onLoadedSourcesRequest(request *dap.LoadedSourcesRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		sources := []dap.Source{}
		seen := map[string]bool{}
		for _, script := range model.Scripts() {
			if script.IsAnonymousScript() || seen[script.SourceURL] {
				continue
			}
			seen[script.SourceURL] = true
			sources = append(sources, *d.sourceForScript(script))
		}
		response := &dap.LoadedSourcesResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.Sources = sources
		d.send(response)
	})
}

// onDisconnectRequest 断开连接，最后一个会话断开时关闭调试，运行时继续执行
func (d *DebugSession) onDisconnectRequest(request *dap.DisconnectRequest) {
	d.onLoop(request.Request, func(model *debugger.DebuggerModel) {
		if d.inspector.sessionCount() > 1 {
			// 其他会话还在使用，只断开自己，断点在连接关闭时删除
			d.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
			response := &dap.DisconnectResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			d.send(response)
			_ = d.conn.Close()
			return
		}
		model.DisableDebugger(func(err error) {
			if err != nil {
				logrus.Warnf("[DAP] disable debugger fail, err = %v", err)
			}
			response := &dap.DisconnectResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			d.send(response)
			_ = d.conn.Close()
		})
	})
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = message
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Format = message
	er.Body.Error.Id = 12345
	return er
}
