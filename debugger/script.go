package debugger

import (
	"net/url"

	"github.com/fansqz/inspector-debugger/protocol"
)

// Script 运行时解析过的一段脚本
// 除了热更新替换源码以外不会被修改
type Script struct {
	model *DebuggerModel

	ScriptID           string
	SourceURL          string
	LineOffset         int
	ColumnOffset       int
	EndLine            int
	EndColumn          int
	ExecutionContextID int
	Hash               string
	IsContentScript    bool
	IsLiveEdit         bool
	SourceMapURL       string
	HasSourceURL       bool

	// source 热更新以后的源码
	source *string
}

func newScript(model *DebuggerModel, event *protocol.ScriptParsedEvent, sourceURL string, isLiveEdit bool) *Script {
	return &Script{
		model:              model,
		ScriptID:           event.ScriptID,
		SourceURL:          sourceURL,
		LineOffset:         event.StartLine,
		ColumnOffset:       event.StartColumn,
		EndLine:            event.EndLine,
		EndColumn:          event.EndColumn,
		ExecutionContextID: event.ExecutionContextID,
		Hash:               event.Hash,
		IsContentScript:    event.IsContentScript(),
		IsLiveEdit:         isLiveEdit,
		SourceMapURL:       event.SourceMapURL,
		HasSourceURL:       event.HasSourceURL,
	}
}

// IsAnonymousScript 没有URL的脚本只能通过id找到
func (s *Script) IsAnonymousScript() bool {
	return s.SourceURL == ""
}

// ContainsLocation 位置是否落在[起始位置, 结束位置)之间，先比较行再比较列
func (s *Script) ContainsLocation(lineNumber int, columnNumber int) bool {
	if s.LineOffset > lineNumber || (s.LineOffset == lineNumber && s.ColumnOffset > columnNumber) {
		return false
	}
	if s.EndLine < lineNumber || (s.EndLine == lineNumber && s.EndColumn <= columnNumber) {
		return false
	}
	return true
}

// Source 热更新后的源码，没有热更新过返回false
func (s *Script) Source() (string, bool) {
	if s.source == nil {
		return "", false
	}
	return *s.source, true
}

// editSource 替换运行中的脚本源码，成功并且没有编译异常时记录新源码
func (s *Script) editSource(newSource string, callback func(result *protocol.SetScriptSourceResult, err error)) {
	s.model.agent.SetScriptSource(&protocol.SetScriptSourceParams{
		ScriptID:     s.ScriptID,
		ScriptSource: newSource,
	}, func(result *protocol.SetScriptSourceResult, err error) {
		if err == nil && (result == nil || result.ExceptionDetails == nil) {
			s.source = &newSource
			s.IsLiveEdit = true
		}
		callback(result, err)
	})
}

// platformPathToURL 把文件系统路径转换成file://形式的URL
func platformPathToURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
