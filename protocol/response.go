package protocol

import (
	"encoding/json"

	e "github.com/fansqz/inspector-debugger/error"
)

// Message 连接上收发的一帧，命令、响应和事件共用
type Message struct {
	ID     int64            `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params json.RawMessage  `json:"params,omitempty"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  *e.ProtocolError `json:"error,omitempty"`
}

type SetBreakpointByURLResult struct {
	BreakpointID string     `json:"breakpointId"`
	Locations    []Location `json:"locations"`
}

type SetBreakpointResult struct {
	BreakpointID   string    `json:"breakpointId"`
	ActualLocation *Location `json:"actualLocation"`
}

// ExceptionDetails 求值或编译时抛出的异常
type ExceptionDetails struct {
	ExceptionID  int           `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int           `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	ScriptID     string        `json:"scriptId,omitempty"`
	URL          string        `json:"url,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

type EvaluateOnCallFrameResult struct {
	Result           *RemoteObject     `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

type RestartFrameResult struct {
	CallFrames      []CallFrame `json:"callFrames,omitempty"`
	AsyncStackTrace *StackTrace `json:"asyncStackTrace,omitempty"`
}

// SetScriptSourceResult StackChanged为true时需要step into才能回到一致的状态
type SetScriptSourceResult struct {
	CallFrames       []CallFrame       `json:"callFrames,omitempty"`
	StackChanged     bool              `json:"stackChanged,omitempty"`
	AsyncStackTrace  *StackTrace       `json:"asyncStackTrace,omitempty"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

// PropertyDescriptor 对象上的一个属性
type PropertyDescriptor struct {
	Name         string        `json:"name"`
	Value        *RemoteObject `json:"value,omitempty"`
	Writable     bool          `json:"writable,omitempty"`
	Configurable bool          `json:"configurable"`
	Enumerable   bool          `json:"enumerable"`
	IsOwn        bool          `json:"isOwn,omitempty"`
}

type InternalPropertyDescriptor struct {
	Name  string        `json:"name"`
	Value *RemoteObject `json:"value,omitempty"`
}

type GetPropertiesResult struct {
	Result             []PropertyDescriptor         `json:"result"`
	InternalProperties []InternalPropertyDescriptor `json:"internalProperties,omitempty"`
	ExceptionDetails   *ExceptionDetails            `json:"exceptionDetails,omitempty"`
}
