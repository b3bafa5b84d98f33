package debugger

import (
	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/sirupsen/logrus"
)

// CallFrame 暂停时的一个调用帧
type CallFrame struct {
	model            *DebuggerModel
	script           *Script
	payload          protocol.CallFrame
	location         *Location
	functionLocation *Location
	scopeChain       []*Scope
	localScope       *Scope

	thisObject  *RemoteObject
	returnValue *RemoteObject
}

func newCallFrame(model *DebuggerModel, script *Script, payload protocol.CallFrame) *CallFrame {
	c := &CallFrame{
		model:    model,
		script:   script,
		payload:  payload,
		location: LocationFromPayload(model, payload.Location),
	}
	c.scopeChain = make([]*Scope, 0, len(payload.ScopeChain))
	for i := range payload.ScopeChain {
		scope := newScope(c, i)
		c.scopeChain = append(c.scopeChain, scope)
		if c.localScope == nil && scope.Type() == constants.ScopeLocal {
			c.localScope = scope
		}
	}
	if payload.FunctionLocation != nil {
		c.functionLocation = LocationFromPayload(model, *payload.FunctionLocation)
	}
	return c
}

// callFramesFromPayload 转换调用帧列表
// 脚本没有注册过的帧会被直接丢掉，展示出来的栈可能比运行时的短
func callFramesFromPayload(model *DebuggerModel, callFrames []protocol.CallFrame) []*CallFrame {
	answer := make([]*CallFrame, 0, len(callFrames))
	for _, callFrame := range callFrames {
		script := model.ScriptForID(callFrame.Location.ScriptID)
		if script == nil {
			logrus.Debugf("[CallFrame] drop frame %s, script %s not found", callFrame.CallFrameID, callFrame.Location.ScriptID)
			continue
		}
		answer = append(answer, newCallFrame(model, script, callFrame))
	}
	return answer
}

func (c *CallFrame) Script() *Script {
	return c.script
}

// ID 协议层的调用帧id，用于求值和重启帧
func (c *CallFrame) ID() string {
	return c.payload.CallFrameID
}

func (c *CallFrame) FunctionName() string {
	return c.payload.FunctionName
}

func (c *CallFrame) Location() *Location {
	return c.location
}

// FunctionLocation 函数定义的位置，可能为nil
func (c *CallFrame) FunctionLocation() *Location {
	return c.functionLocation
}

func (c *CallFrame) ScopeChain() []*Scope {
	return c.scopeChain
}

// LocalScope 第一个local类型的作用域
func (c *CallFrame) LocalScope() *Scope {
	return c.localScope
}

func (c *CallFrame) ThisObject() *RemoteObject {
	if c.payload.This == nil {
		return nil
	}
	if c.thisObject == nil {
		c.thisObject = newRemoteObject(c.model, *c.payload.This)
	}
	return c.thisObject
}

func (c *CallFrame) ReturnValue() *RemoteObject {
	if c.payload.ReturnValue == nil {
		return nil
	}
	if c.returnValue == nil {
		c.returnValue = newRemoteObject(c.model, *c.payload.ReturnValue)
	}
	return c.returnValue
}

// Evaluate 在该调用帧上求值
func (c *CallFrame) Evaluate(options EvaluateOptions, callback EvaluateCallback) {
	c.model.agent.EvaluateOnCallFrame(&protocol.EvaluateOnCallFrameParams{
		CallFrameID:           c.payload.CallFrameID,
		Expression:            options.Expression,
		ObjectGroup:           options.ObjectGroup,
		IncludeCommandLineAPI: options.IncludeCommandLineAPI,
		Silent:                options.Silent,
		ReturnByValue:         options.ReturnByValue,
		GeneratePreview:       options.GeneratePreview,
	}, func(result *protocol.EvaluateOnCallFrameResult, err error) {
		if err != nil {
			logrus.Errorf("[CallFrame] evaluate on call frame fail, err = %v", err)
			callback(nil, nil, err)
			return
		}
		if result == nil || result.Result == nil {
			callback(nil, nil, nil)
			return
		}
		callback(newRemoteObject(c.model, *result.Result), result.ExceptionDetails, nil)
	})
}

// Restart 重新执行该帧，成功以后需要step into才能停到帧的开头
func (c *CallFrame) Restart(callback func(err error)) {
	c.model.agent.RestartFrame(c.payload.CallFrameID, func(result *protocol.RestartFrameResult, err error) {
		if err != nil {
			logrus.Errorf("[CallFrame] restart frame fail, err = %v", err)
		} else {
			c.model.StepInto()
		}
		if callback != nil {
			callback(err)
		}
	})
}

// Scope 调用帧中的一个作用域
type Scope struct {
	callFrame     *CallFrame
	payload       protocol.Scope
	ordinal       int
	scopeType     constants.ScopeType
	startLocation *Location
	endLocation   *Location
	object        *RemoteObject
}

func newScope(callFrame *CallFrame, ordinal int) *Scope {
	payload := callFrame.payload.ScopeChain[ordinal]
	s := &Scope{
		callFrame: callFrame,
		payload:   payload,
		ordinal:   ordinal,
		scopeType: constants.ScopeType(payload.Type),
	}
	if payload.StartLocation != nil {
		s.startLocation = LocationFromPayload(callFrame.model, *payload.StartLocation)
	}
	if payload.EndLocation != nil {
		s.endLocation = LocationFromPayload(callFrame.model, *payload.EndLocation)
	}
	return s
}

func (s *Scope) CallFrame() *CallFrame {
	return s.callFrame
}

func (s *Scope) Type() constants.ScopeType {
	return s.scopeType
}

func (s *Scope) Name() string {
	return s.payload.Name
}

// Ordinal 在作用域链中的序号
func (s *Scope) Ordinal() int {
	return s.ordinal
}

func (s *Scope) StartLocation() *Location {
	return s.startLocation
}

func (s *Scope) EndLocation() *Location {
	return s.endLocation
}

// Object 作用域中的变量绑定，第一次访问时创建
func (s *Scope) Object() *RemoteObject {
	if s.object != nil {
		return s.object
	}
	model := s.callFrame.model
	if s.scopeType.IsDeclarative() {
		s.object = newScopeRemoteObject(model, s.payload.Object, &ScopeRef{
			Number:      s.ordinal,
			CallFrameID: s.callFrame.ID(),
		})
	} else {
		s.object = newRemoteObject(model, s.payload.Object)
	}
	return s.object
}

// Description 声明式作用域没有描述
func (s *Scope) Description() string {
	if s.scopeType.IsDeclarative() {
		return ""
	}
	return s.payload.Object.Description
}
