package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fansqz/inspector-debugger/constants"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// pipeConn 内存中的连接，inbound模拟运行时发来的消息，outbound记录发出的消息
type pipeConn struct {
	inbound  chan []byte
	outbound chan []byte
	once     sync.Once
	closed   chan struct{}
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (p *pipeConn) ReadMessage() (int, []byte, error) {
	select {
	case message := <-p.inbound:
		return 1, message, nil
	case <-p.closed:
		return 0, nil, io.EOF
	}
}

func (p *pipeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}
	p.outbound <- data
	return nil
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) nextFrame(t *testing.T) gjson.Result {
	select {
	case frame := <-p.outbound:
		require.True(t, gjson.ValidBytes(frame))
		return gjson.ParseBytes(frame)
	case <-time.After(time.Second):
		t.Fatal("no frame written")
	}
	return gjson.Result{}
}

type agentHelper struct {
	t      *testing.T
	conn   *pipeConn
	agent  *Agent
	events chan string
	cancel context.CancelFunc
	runErr chan error
}

func newAgentHelper(t *testing.T) *agentHelper {
	h := &agentHelper{
		t:      t,
		conn:   newPipeConn(),
		events: make(chan string, 16),
		runErr: make(chan error, 1),
	}
	h.agent = NewAgent(h.conn, nil, func(method string, params json.RawMessage) {
		h.events <- method + " " + string(params)
	})
	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.Background())
	go func() {
		h.runErr <- h.agent.Run(ctx)
	}()
	t.Cleanup(h.cancel)
	return h
}

func TestAgentCommandRoundTrip(t *testing.T) {
	h := newAgentHelper(t)
	results := make(chan *protocol.SetBreakpointByURLResult, 1)
	h.agent.SetBreakpointByURL(&protocol.SetBreakpointByURLParams{
		URL:          "https://x/a.js",
		LineNumber:   5,
		ColumnNumber: 3,
	}, func(result *protocol.SetBreakpointByURLResult, err error) {
		assert.Nil(t, err)
		results <- result
	})

	frame := h.conn.nextFrame(t)
	assert.Equal(t, protocol.MethodSetBreakpointByURL, frame.Get("method").String())
	assert.Equal(t, "https://x/a.js", frame.Get("params.url").String())
	assert.Equal(t, int64(3), frame.Get("params.columnNumber").Int())
	id := frame.Get("id").Int()

	h.conn.inbound <- []byte(`{"id":` + frame.Get("id").Raw + `,"result":{"breakpointId":"1:5:3:a","locations":[{"scriptId":"s1","lineNumber":5,"columnNumber":3}]}}`)
	select {
	case result := <-results:
		assert.Equal(t, "1:5:3:a", result.BreakpointID)
		require.Len(t, result.Locations, 1)
		assert.Equal(t, "s1", result.Locations[0].ScriptID)
	case <-time.After(time.Second):
		t.Fatalf("no response for command %d", id)
	}
}

func TestAgentCommandWithoutParams(t *testing.T) {
	h := newAgentHelper(t)
	h.agent.Resume(nil)
	frame := h.conn.nextFrame(t)
	assert.Equal(t, protocol.MethodResume, frame.Get("method").String())
	assert.False(t, frame.Get("params").Exists())

	h.agent.SetPauseOnExceptions(constants.PauseOnUncaughtExceptions, nil)
	frame = h.conn.nextFrame(t)
	assert.Equal(t, "uncaught", frame.Get("params.state").String())

	h.agent.SetBlackboxPatterns(nil, nil)
	frame = h.conn.nextFrame(t)
	assert.True(t, frame.Get("params.patterns").IsArray())
}

func TestAgentProtocolError(t *testing.T) {
	h := newAgentHelper(t)
	errs := make(chan error, 1)
	h.agent.RemoveBreakpoint("bp-1", func(err error) {
		errs <- err
	})
	frame := h.conn.nextFrame(t)
	h.conn.inbound <- []byte(`{"id":` + frame.Get("id").Raw + `,"error":{"code":-32000,"message":"Breakpoint not found"}}`)

	err := <-errs
	var protocolErr *e.ProtocolError
	require.True(t, errors.As(err, &protocolErr))
	assert.Equal(t, -32000, protocolErr.Code)
	assert.Equal(t, "Breakpoint not found", protocolErr.Message)
}

func TestAgentRoutesEvents(t *testing.T) {
	h := newAgentHelper(t)
	h.conn.inbound <- []byte(`not json`)
	h.conn.inbound <- []byte(`{"method":"Debugger.resumed"}`)
	h.conn.inbound <- []byte(`{"method":"Debugger.scriptParsed","params":{"scriptId":"s1"}}`)

	assert.Equal(t, "Debugger.resumed ", <-h.events)
	assert.Equal(t, `Debugger.scriptParsed {"scriptId":"s1"}`, <-h.events)
}

func TestAgentFailsPendingOnClose(t *testing.T) {
	h := newAgentHelper(t)
	errs := make(chan error, 1)
	h.agent.Pause(func(err error) {
		errs <- err
	})
	h.conn.nextFrame(t)
	require.Nil(t, h.agent.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, e.ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("pending command not failed")
	}
	assert.ErrorIs(t, <-h.runErr, e.ErrConnectionClosed)

	// 关闭以后发送的命令直接失败
	h.agent.StepInto(func(err error) {
		errs <- err
	})
	assert.ErrorIs(t, <-errs, e.ErrConnectionClosed)
}

func TestCheckProtocolVersion(t *testing.T) {
	assert.Nil(t, CheckProtocolVersion("1.3"))
	assert.Nil(t, CheckProtocolVersion("1.1"))
	assert.ErrorIs(t, CheckProtocolVersion("1.0"), e.ErrProtocolVersionNotSupported)
	assert.ErrorIs(t, CheckProtocolVersion("latest"), e.ErrProtocolVersionNotSupported)
}

func TestDiscover(t *testing.T) {
	var protocolVersion atomic.Value
	protocolVersion.Store("1.3")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/version":
			_, _ = w.Write([]byte(`{"Browser":"Chrome/120.0","Protocol-Version":"` + protocolVersion.Load().(string) + `"}`))
		case "/json/list":
			_, _ = w.Write([]byte(`[
				{"id":"sw","type":"service_worker","url":"https://x/app","webSocketDebuggerUrl":"ws://h/sw"},
				{"id":"p1","type":"page","url":"https://x/other","webSocketDebuggerUrl":"ws://h/p1"},
				{"id":"p2","type":"page","url":"https://x/app","webSocketDebuggerUrl":"ws://h/p2"},
				{"id":"n1","type":"node","url":"file:///srv/main.js","webSocketDebuggerUrl":"ws://h/n1"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	discovery := NewDiscovery(server.URL+"/", nil)
	target, err := discovery.Discover(context.Background(), "/app")
	require.Nil(t, err)
	assert.Equal(t, "p2", target.ID)
	assert.Equal(t, constants.RuntimeBrowser, target.Kind())

	target, err = discovery.Discover(context.Background(), "main.js")
	require.Nil(t, err)
	assert.True(t, target.TargetInfo().IsNodeJS())

	_, err = discovery.Discover(context.Background(), "missing")
	assert.ErrorIs(t, err, e.ErrTargetNotFound)

	protocolVersion.Store("0.9")
	_, err = discovery.Discover(context.Background(), "")
	assert.ErrorIs(t, err, e.ErrProtocolVersionNotSupported)
}
