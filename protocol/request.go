package protocol

import "encoding/json"

type SetSkipAllPausesParams struct {
	Skip bool `json:"skip"`
}

type SetBreakpointsActiveParams struct {
	Active bool `json:"active"`
}

// SetBreakpointByURLParams 按URL设置断点
type SetBreakpointByURLParams struct {
	LineNumber   int    `json:"lineNumber"`
	URL          string `json:"url,omitempty"`
	URLRegex     string `json:"urlRegex,omitempty"`
	ColumnNumber int    `json:"columnNumber"`
	Condition    string `json:"condition,omitempty"`
}

// SetBreakpointParams 按脚本id的精确位置设置断点
type SetBreakpointParams struct {
	Location  Location `json:"location"`
	Condition string   `json:"condition,omitempty"`
}

type RemoveBreakpointParams struct {
	BreakpointID string `json:"breakpointId"`
}

type SetPauseOnExceptionsParams struct {
	State string `json:"state"`
}

type SetAsyncCallStackDepthParams struct {
	MaxDepth int `json:"maxDepth"`
}

// CallArgument 传给运行时的参数值，三个字段最多设置一个
type CallArgument struct {
	Value               json.RawMessage `json:"value,omitempty"`
	UnserializableValue string          `json:"unserializableValue,omitempty"`
	ObjectID            string          `json:"objectId,omitempty"`
}

type SetVariableValueParams struct {
	ScopeNumber  int          `json:"scopeNumber"`
	VariableName string       `json:"variableName"`
	NewValue     CallArgument `json:"newValue"`
	CallFrameID  string       `json:"callFrameId"`
}

type SetBlackboxPatternsParams struct {
	Patterns []string `json:"patterns"`
}

// EvaluateOnCallFrameParams 在某个调用帧上求值
type EvaluateOnCallFrameParams struct {
	CallFrameID           string `json:"callFrameId"`
	Expression            string `json:"expression"`
	ObjectGroup           string `json:"objectGroup,omitempty"`
	IncludeCommandLineAPI bool   `json:"includeCommandLineAPI,omitempty"`
	Silent                bool   `json:"silent,omitempty"`
	ReturnByValue         bool   `json:"returnByValue,omitempty"`
	GeneratePreview       bool   `json:"generatePreview,omitempty"`
}

type ContinueToLocationParams struct {
	Location Location `json:"location"`
}

type RestartFrameParams struct {
	CallFrameID string `json:"callFrameId"`
}

type SetScriptSourceParams struct {
	ScriptID     string `json:"scriptId"`
	ScriptSource string `json:"scriptSource"`
	DryRun       bool   `json:"dryRun,omitempty"`
}

type GetPropertiesParams struct {
	ObjectID               string `json:"objectId"`
	OwnProperties          bool   `json:"ownProperties,omitempty"`
	AccessorPropertiesOnly bool   `json:"accessorPropertiesOnly,omitempty"`
}
