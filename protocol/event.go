package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Location 运行时使用的原始位置
type Location struct {
	ScriptID     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// RemoteObject 运行时中某个值的镜像
type RemoteObject struct {
	Type                string          `json:"type"`
	Subtype             string          `json:"subtype,omitempty"`
	ClassName           string          `json:"className,omitempty"`
	Value               json.RawMessage `json:"value,omitempty"`
	UnserializableValue string          `json:"unserializableValue,omitempty"`
	Description         string          `json:"description,omitempty"`
	ObjectID            string          `json:"objectId,omitempty"`
}

// Scope 调用帧中的一个作用域
type Scope struct {
	Type          string       `json:"type"`
	Object        RemoteObject `json:"object"`
	Name          string       `json:"name,omitempty"`
	StartLocation *Location    `json:"startLocation,omitempty"`
	EndLocation   *Location    `json:"endLocation,omitempty"`
}

// CallFrame 暂停时的一个调用帧
type CallFrame struct {
	CallFrameID      string        `json:"callFrameId"`
	FunctionName     string        `json:"functionName"`
	FunctionLocation *Location     `json:"functionLocation,omitempty"`
	Location         Location      `json:"location"`
	URL              string        `json:"url,omitempty"`
	ScopeChain       []Scope       `json:"scopeChain"`
	This             *RemoteObject `json:"this,omitempty"`
	ReturnValue      *RemoteObject `json:"returnValue,omitempty"`
}

// RuntimeCallFrame 异步栈中的调用帧，只有位置信息
type RuntimeCallFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// StackTrace 异步栈的一段，通过Parent串成单链表
type StackTrace struct {
	Description string             `json:"description,omitempty"`
	CallFrames  []RuntimeCallFrame `json:"callFrames"`
	Parent      *StackTrace        `json:"parent,omitempty"`

	// cleaned 该段已经去除过冗余帧
	cleaned bool
}

// Cleaned 该段是否已经去除过冗余帧
func (s *StackTrace) Cleaned() bool {
	return s.cleaned
}

// MarkCleaned 标记该段已经去除过冗余帧
func (s *StackTrace) MarkCleaned() {
	s.cleaned = true
}

// PausedEvent Debugger.paused
type PausedEvent struct {
	CallFrames      []CallFrame     `json:"callFrames"`
	Reason          string          `json:"reason"`
	Data            json.RawMessage `json:"data,omitempty"`
	HitBreakpoints  []string        `json:"hitBreakpoints,omitempty"`
	AsyncStackTrace *StackTrace     `json:"asyncStackTrace,omitempty"`
}

func (p *PausedEvent) Validate() error {
	for i, frame := range p.CallFrames {
		if frame.CallFrameID == "" {
			return fmt.Errorf("call frame %d: missing callFrameId", i)
		}
		if frame.Location.ScriptID == "" {
			return fmt.Errorf("call frame %d: missing location.scriptId", i)
		}
	}
	return nil
}

// ScriptParsedEvent Debugger.scriptParsed 和 Debugger.scriptFailedToParse 的参数
type ScriptParsedEvent struct {
	ScriptID                string          `json:"scriptId"`
	URL                     string          `json:"url"`
	StartLine               int             `json:"startLine"`
	StartColumn             int             `json:"startColumn"`
	EndLine                 int             `json:"endLine"`
	EndColumn               int             `json:"endColumn"`
	ExecutionContextID      int             `json:"executionContextId"`
	Hash                    string          `json:"hash"`
	ExecutionContextAuxData json.RawMessage `json:"executionContextAuxData,omitempty"`
	IsLiveEdit              bool            `json:"isLiveEdit,omitempty"`
	SourceMapURL            string          `json:"sourceMapURL,omitempty"`
	HasSourceURL            bool            `json:"hasSourceURL,omitempty"`
}

func (s *ScriptParsedEvent) Validate() error {
	if s.ScriptID == "" {
		return fmt.Errorf("missing scriptId")
	}
	return nil
}

// IsContentScript 上下文附加数据中isDefault为false时说明是扩展注入的脚本
func (s *ScriptParsedEvent) IsContentScript() bool {
	if len(s.ExecutionContextAuxData) == 0 {
		return false
	}
	isDefault := gjson.GetBytes(s.ExecutionContextAuxData, "isDefault")
	if !isDefault.Exists() {
		return false
	}
	return !isDefault.Bool()
}

// BreakpointResolvedEvent Debugger.breakpointResolved
type BreakpointResolvedEvent struct {
	BreakpointID string   `json:"breakpointId"`
	Location     Location `json:"location"`
}

func (b *BreakpointResolvedEvent) Validate() error {
	if b.BreakpointID == "" {
		return fmt.Errorf("missing breakpointId")
	}
	return nil
}

// ParseEvent 解析事件参数并校验，返回对应的事件结构体指针
// 不认识的事件返回nil, nil
func ParseEvent(method string, params []byte) (interface{}, error) {
	var event interface{ Validate() error }
	switch method {
	case EventPaused:
		event = &PausedEvent{}
	case EventResumed:
		return &ResumedEvent{}, nil
	case EventScriptParsed, EventScriptFailedToParse:
		event = &ScriptParsedEvent{}
	case EventBreakpointResolved:
		event = &BreakpointResolvedEvent{}
	default:
		return nil, nil
	}
	if len(params) != 0 {
		if err := json.Unmarshal(params, event); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", method, err)
	}
	return event, nil
}

// ResumedEvent Debugger.resumed，没有参数
type ResumedEvent struct{}
