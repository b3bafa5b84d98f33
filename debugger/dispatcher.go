package debugger

import (
	"encoding/json"
	"fmt"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/sirupsen/logrus"
)

// Dispatcher 把运行时上报的Debugger.*事件转发给DebuggerModel
type Dispatcher struct {
	model *DebuggerModel
}

func NewDispatcher(model *DebuggerModel) *Dispatcher {
	return &Dispatcher{model: model}
}

func (d *Dispatcher) Paused(event *protocol.PausedEvent) {
	d.model.pausedScript(event.CallFrames, constants.ParsePauseReason(event.Reason), event.Data,
		event.HitBreakpoints, event.AsyncStackTrace)
}

func (d *Dispatcher) Resumed() {
	d.model.resumedScript()
}

func (d *Dispatcher) ScriptParsed(event *protocol.ScriptParsedEvent) {
	d.model.parsedScriptSource(event, false)
}

func (d *Dispatcher) ScriptFailedToParse(event *protocol.ScriptParsedEvent) {
	d.model.parsedScriptSource(event, true)
}

func (d *Dispatcher) BreakpointResolved(event *protocol.BreakpointResolvedEvent) {
	d.model.breakpointResolvedEvent(event.BreakpointID, event.Location)
}

// Dispatch 解析并分发一条事件，不认识的事件忽略
func (d *Dispatcher) Dispatch(method string, params json.RawMessage) error {
	event, err := protocol.ParseEvent(method, params)
	if err != nil {
		logrus.Warnf("[DebuggerModel] drop malformed event, err = %v", err)
		return err
	}
	switch ev := event.(type) {
	case *protocol.PausedEvent:
		d.Paused(ev)
	case *protocol.ResumedEvent:
		d.Resumed()
	case *protocol.ScriptParsedEvent:
		if method == protocol.EventScriptFailedToParse {
			d.ScriptFailedToParse(ev)
		} else {
			d.ScriptParsed(ev)
		}
	case *protocol.BreakpointResolvedEvent:
		d.BreakpointResolved(ev)
	case nil:
		logrus.Debugf("[DebuggerModel] ignore event %s", method)
	default:
		return fmt.Errorf("unexpected event type %T", ev)
	}
	return nil
}
