package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/fansqz/inspector-debugger/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type serverHelper struct {
	t       *testing.T
	runtime *fakeRuntime
	store   *settings.Store
	server  *StatusServer
}

func newServerHelper(t *testing.T) *serverHelper {
	h := &serverHelper{
		t:       t,
		runtime: newFakeRuntime(),
		store:   settings.New(),
	}
	h.server = NewStatusServer(startInspector(t, h.runtime, h.store))
	return h
}

func (h *serverHelper) do(method string, target string) (int, gjson.Result) {
	resp, err := h.server.app.Test(httptest.NewRequest(method, target, nil), 2000)
	require.Nil(h.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.Nil(h.t, err)
	return resp.StatusCode, gjson.ParseBytes(body)
}

// waitPaused 等待会话处理完暂停事件
func (h *serverHelper) waitPaused() {
	require.Eventually(h.t, func() bool {
		_, body := h.do(http.MethodGet, "/status")
		return body.Get("paused").Bool()
	}, time.Second, 10*time.Millisecond)
}

func TestStatusAPI(t *testing.T) {
	h := newServerHelper(t)
	h.runtime.push(protocol.EventScriptParsed, scriptParsedParams("s1", appScriptURL))

	require.Eventually(t, func() bool {
		_, body := h.do(http.MethodGet, "/status")
		return body.Get("scripts").Int() == 1
	}, time.Second, 10*time.Millisecond)
	code, body := h.do(http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "target-1", body.Get("target").String())
	assert.True(t, body.Get("enabled").Bool())
	assert.False(t, body.Get("paused").Bool())
	assert.Equal(t, "running", body.Get("lifecycle").String())

	code, body = h.do(http.MethodGet, "/scripts")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Array(), 1)
	assert.Equal(t, appScriptURL, body.Get("0.url").String())
	assert.Equal(t, int64(100), body.Get("0.endLine").Int())
}

func TestPausedAPI(t *testing.T) {
	h := newServerHelper(t)
	code, _ := h.do(http.MethodGet, "/paused")
	assert.Equal(t, http.StatusConflict, code)
	code, _ = h.do(http.MethodPost, "/resume")
	assert.Equal(t, http.StatusConflict, code)

	h.runtime.push(protocol.EventScriptParsed, scriptParsedParams("s1", appScriptURL))
	h.runtime.push(protocol.EventPaused, pausedParams("debugCommand"))
	h.waitPaused()

	code, body := h.do(http.MethodGet, "/paused")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "debugCommand", body.Get("reason").String())
	assert.Equal(t, "main", body.Get("callFrames.0.functionName").String())
	assert.Equal(t, int64(4), body.Get("callFrames.0.lineNumber").Int())
	assert.Equal(t, "setTimeout", body.Get("asyncStackTrace.description").String())

	code, _ = h.do(http.MethodPost, "/step/stepOver")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 1, h.runtime.count(protocol.MethodStepOver))

	code, _ = h.do(http.MethodPost, "/step/backwards")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPost, "/resume")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 1, h.runtime.count(protocol.MethodResume))

	code, _ = h.do(http.MethodPost, "/pause")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 1, h.runtime.count(protocol.MethodPause))
}

func TestSkipPausesAPI(t *testing.T) {
	h := newServerHelper(t)
	code, _ := h.do(http.MethodPost, "/skip-pauses")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodPost, "/skip-pauses?timeout=soon")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := h.do(http.MethodPost, "/skip-pauses?timeout=5s")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5s", body.Get("timeout").String())
	sent := h.runtime.sent(protocol.MethodSetSkipAllPauses)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Get("skip").Bool())

	// 没有参数时使用配置中的超时时间，到期以后恢复
	h.store.Set(func(doc *settings.Document) {
		doc.SkipAllPausesTimeout = 20 * time.Millisecond
	})
	code, _ = h.do(http.MethodPost, "/skip-pauses")
	assert.Equal(t, http.StatusOK, code)
	assert.Eventually(t, func() bool {
		sent := h.runtime.sent(protocol.MethodSetSkipAllPauses)
		return len(sent) == 3 && !sent[2].Get("skip").Bool()
	}, time.Second, 10*time.Millisecond)
}

func TestErrorHandlerBody(t *testing.T) {
	h := newServerHelper(t)
	resp, err := h.server.app.Test(httptest.NewRequest(http.MethodPost, "/step/nowhere", nil), 2000)
	require.Nil(t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "unknown step type")
}
