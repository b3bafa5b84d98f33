package debugger

import (
	"encoding/json"
	"fmt"

	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/sirupsen/logrus"
)

// Location 原始位置，(会话, 脚本id, 行, 列)
// 按值比较，跨会话唯一的标识使用ID()
type Location struct {
	model        *DebuggerModel
	ScriptID     string
	LineNumber   int
	ColumnNumber int
}

func NewLocation(model *DebuggerModel, scriptID string, lineNumber int, columnNumber int) *Location {
	return &Location{
		model:        model,
		ScriptID:     scriptID,
		LineNumber:   lineNumber,
		ColumnNumber: columnNumber,
	}
}

func LocationFromPayload(model *DebuggerModel, payload protocol.Location) *Location {
	return NewLocation(model, payload.ScriptID, payload.LineNumber, payload.ColumnNumber)
}

func (l *Location) Payload() protocol.Location {
	return protocol.Location{
		ScriptID:     l.ScriptID,
		LineNumber:   l.LineNumber,
		ColumnNumber: l.ColumnNumber,
	}
}

// Script 位置所在的脚本，脚本未注册时返回nil
func (l *Location) Script() *Script {
	return l.model.ScriptForID(l.ScriptID)
}

// ContinueToLocation 继续执行到该位置
func (l *Location) ContinueToLocation(callback func(err error)) {
	l.model.agent.ContinueToLocation(l.Payload(), callback)
}

// ID <targetId>:<scriptId>:<line>:<column>
func (l *Location) ID() string {
	return fmt.Sprintf("%s:%s:%d:%d", l.model.target.ID(), l.ScriptID, l.LineNumber, l.ColumnNumber)
}

// ScopeRef 声明式作用域的引用，通过调用帧id和作用域序号定位
type ScopeRef struct {
	Number      int
	CallFrameID string
}

// RemoteObject 运行时中某个值的句柄
type RemoteObject struct {
	model    *DebuggerModel
	payload  protocol.RemoteObject
	scopeRef *ScopeRef
}

func newRemoteObject(model *DebuggerModel, payload protocol.RemoteObject) *RemoteObject {
	return &RemoteObject{model: model, payload: payload}
}

// NewRemoteObject 根据运行时返回的对象（属性值、求值结果）创建句柄
func NewRemoteObject(model *DebuggerModel, payload protocol.RemoteObject) *RemoteObject {
	return newRemoteObject(model, payload)
}

func newScopeRemoteObject(model *DebuggerModel, payload protocol.RemoteObject, ref *ScopeRef) *RemoteObject {
	return &RemoteObject{model: model, payload: payload, scopeRef: ref}
}

func (r *RemoteObject) Payload() protocol.RemoteObject {
	return r.payload
}

func (r *RemoteObject) Type() string {
	return r.payload.Type
}

func (r *RemoteObject) Subtype() string {
	return r.payload.Subtype
}

func (r *RemoteObject) ObjectID() string {
	return r.payload.ObjectID
}

func (r *RemoteObject) Description() string {
	return r.payload.Description
}

// ScopeRef 只有声明式作用域对象才有
func (r *RemoteObject) ScopeRef() *ScopeRef {
	return r.scopeRef
}

// HasChildren 是否可以继续展开
func (r *RemoteObject) HasChildren() bool {
	return r.payload.ObjectID != ""
}

// DisplayValue 用于展示的值
func (r *RemoteObject) DisplayValue() string {
	if r.payload.UnserializableValue != "" {
		return r.payload.UnserializableValue
	}
	if len(r.payload.Value) != 0 && r.payload.Type != "object" {
		var s string
		if r.payload.Type == "string" && json.Unmarshal(r.payload.Value, &s) == nil {
			return s
		}
		return string(r.payload.Value)
	}
	if r.payload.Description != "" {
		return r.payload.Description
	}
	if r.payload.Type == "object" && r.payload.Subtype == "null" {
		return "null"
	}
	return r.payload.Type
}

// Properties 读取对象的属性列表
func (r *RemoteObject) Properties(ownProperties bool, callback func(properties []protocol.PropertyDescriptor, err error)) {
	if r.payload.ObjectID == "" {
		callback(nil, nil)
		return
	}
	r.model.agent.GetProperties(&protocol.GetPropertiesParams{
		ObjectID:      r.payload.ObjectID,
		OwnProperties: ownProperties,
	}, func(result *protocol.GetPropertiesResult, err error) {
		if err != nil {
			logrus.Errorf("[RemoteObject] get properties fail, objectId = %s, err = %v", r.payload.ObjectID, err)
			callback(nil, err)
			return
		}
		if result == nil {
			callback(nil, nil)
			return
		}
		callback(result.Result, nil)
	})
}

// SetVariableValue 修改作用域对象中的变量，只对声明式作用域有效
func (r *RemoteObject) SetVariableValue(name string, value protocol.CallArgument, callback func(err error)) {
	if r.scopeRef == nil {
		if callback != nil {
			callback(fmt.Errorf("object %s is not a scope", r.payload.ObjectID))
		}
		return
	}
	r.model.SetVariableValue(r.scopeRef.Number, name, value, r.scopeRef.CallFrameID, callback)
}
