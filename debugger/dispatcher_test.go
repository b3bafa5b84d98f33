package debugger

import (
	"encoding/json"
	"testing"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchScenario(t *testing.T) {
	h := newTestHelper(t)
	h.enable()
	dispatcher := NewDispatcher(h.model)

	err := dispatcher.Dispatch(protocol.EventScriptParsed, json.RawMessage(`{
		"scriptId": "s1",
		"url": "https://x/a.js",
		"startLine": 0,
		"startColumn": 0,
		"endLine": 10,
		"endColumn": 0,
		"executionContextId": 1,
		"hash": "abc",
		"executionContextAuxData": {"isDefault": false}
	}`))
	require.Nil(t, err)
	script := h.model.ScriptForID("s1")
	require.NotNil(t, script)
	assert.True(t, script.IsContentScript)
	assert.Equal(t, "abc", script.Hash)

	location := h.model.CreateRawLocationByURL("https://x/a.js", 3, 0)
	require.NotNil(t, location)
	assert.Equal(t, "s1", location.ScriptID)

	err = dispatcher.Dispatch(protocol.EventPaused, json.RawMessage(`{
		"callFrames": [
			{"callFrameId": "f1", "functionName": "a", "location": {"scriptId": "s1", "lineNumber": 3}, "scopeChain": []}
		],
		"reason": "somethingNew",
		"hitBreakpoints": ["bp-1"]
	}`))
	require.Nil(t, err)
	details := h.model.DebuggerPausedDetails()
	require.NotNil(t, details)
	assert.Equal(t, constants.PauseReasonOther, details.Reason)
	assert.Equal(t, "f1", h.model.SelectedCallFrame().ID())

	require.Nil(t, dispatcher.Dispatch(protocol.EventResumed, nil))
	assert.False(t, h.model.IsPaused())
}

func TestDispatchScriptFailedToParse(t *testing.T) {
	h := newTestHelper(t)
	dispatcher := NewDispatcher(h.model)
	err := dispatcher.Dispatch(protocol.EventScriptFailedToParse,
		json.RawMessage(`{"scriptId": "bad", "url": "https://x/bad.js", "isLiveEdit": true}`))
	require.Nil(t, err)
	assert.Equal(t, 1, h.countEvents(constants.FailedToParseScriptSource))
	assert.Equal(t, 0, h.countEvents(constants.ParsedScriptSource))
	assert.False(t, h.model.ScriptForID("bad").IsLiveEdit)
}

func TestDispatchRejectsMalformedEvents(t *testing.T) {
	h := newTestHelper(t)
	dispatcher := NewDispatcher(h.model)

	assert.NotNil(t, dispatcher.Dispatch(protocol.EventScriptParsed, json.RawMessage(`{"url": "https://x/a.js"}`)))
	assert.NotNil(t, dispatcher.Dispatch(protocol.EventPaused, json.RawMessage(`{"callFrames": [{"location": {}}]}`)))
	assert.NotNil(t, dispatcher.Dispatch(protocol.EventBreakpointResolved, json.RawMessage(`not json`)))
	assert.Empty(t, h.model.Scripts())
	assert.False(t, h.model.IsPaused())

	// 不认识的事件直接忽略
	assert.Nil(t, dispatcher.Dispatch("Debugger.somethingElse", json.RawMessage(`{}`)))
}

func TestDispatchBreakpointResolved(t *testing.T) {
	h := newTestHelper(t)
	dispatcher := NewDispatcher(h.model)
	var resolved *Location
	h.model.AddBreakpointListener("bp-1", func(location *Location) {
		resolved = location
	})
	err := dispatcher.Dispatch(protocol.EventBreakpointResolved,
		json.RawMessage(`{"breakpointId": "bp-1", "location": {"scriptId": "s1", "lineNumber": 2, "columnNumber": 4}}`))
	require.Nil(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, 4, resolved.ColumnNumber)
}
