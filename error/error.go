package error

import (
	"errors"
	"fmt"
)

var (
	ErrDebuggerNotEnabled          = errors.New("debugger is not enabled")
	ErrDebuggerNotPaused           = errors.New("debugger is not paused")
	ErrNoSelectedCallFrame         = errors.New("no call frame selected")
	ErrScriptNotFound              = errors.New("script not found")
	ErrConnectionClosed            = errors.New("connection is closed")
	ErrProtocolVersionNotSupported = errors.New("protocol version not supported")
	ErrTargetNotFound              = errors.New("debugging target not found")
	ErrUnknownReference            = errors.New("reference not found")
)

// ProtocolError 运行时对某个命令返回的错误
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (p *ProtocolError) Error() string {
	if p.Data != "" {
		return fmt.Sprintf("protocol error %d: %s (%s)", p.Code, p.Message, p.Data)
	}
	return fmt.Sprintf("protocol error %d: %s", p.Code, p.Message)
}
