package debugger

import (
	"encoding/json"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/protocol"
)

// PausedDetails 一次暂停的快照，创建以后不会再修改
type PausedDetails struct {
	model *DebuggerModel

	// CallFrames 脚本找不到的帧已经被去掉
	CallFrames    []*CallFrame
	Reason        constants.PauseReason
	AuxData       json.RawMessage
	BreakpointIDs []string
	// AsyncStackTrace 已经去除冗余帧的异步栈，可能为nil
	AsyncStackTrace *protocol.StackTrace
}

func NewPausedDetails(model *DebuggerModel, callFrames []protocol.CallFrame, reason constants.PauseReason,
	auxData json.RawMessage, breakpointIDs []string, asyncStackTrace *protocol.StackTrace) *PausedDetails {
	if breakpointIDs == nil {
		breakpointIDs = []string{}
	}
	p := &PausedDetails{
		model:         model,
		CallFrames:    callFramesFromPayload(model, callFrames),
		Reason:        reason,
		AuxData:       auxData,
		BreakpointIDs: breakpointIDs,
	}
	if asyncStackTrace != nil {
		p.AsyncStackTrace = CleanRedundantFrames(cloneStackTrace(asyncStackTrace))
	}
	return p
}

// Exception 因为异常暂停时，附加数据就是异常对象
func (p *PausedDetails) Exception() *RemoteObject {
	if p.Reason != constants.PauseReasonException && p.Reason != constants.PauseReasonPromiseRejection {
		return nil
	}
	if len(p.AuxData) == 0 {
		return nil
	}
	var payload protocol.RemoteObject
	if err := json.Unmarshal(p.AuxData, &payload); err != nil {
		return nil
	}
	return newRemoteObject(p.model, payload)
}

// CleanRedundantFrames 去除异步栈中的冗余帧
// "async function"段的第一帧和调用方段里的调用点重复，需要去掉；
// 去掉以后为空的段直接从链表中摘除。每个段只会被处理一次，重复调用结果不变。
func CleanRedundantFrames(asyncStackTrace *protocol.StackTrace) *protocol.StackTrace {
	var previous *protocol.StackTrace
	for stack := asyncStackTrace; stack != nil; stack = stack.Parent {
		if !stack.Cleaned() {
			if stack.Description == constants.AsyncFunctionDescription && len(stack.CallFrames) != 0 {
				stack.CallFrames = stack.CallFrames[1:]
			}
			stack.MarkCleaned()
		}
		if previous != nil && len(stack.CallFrames) == 0 {
			previous.Parent = stack.Parent
		} else {
			previous = stack
		}
	}
	return asyncStackTrace
}

// cloneStackTrace 复制整条异步栈，避免修改事件里的原始数据
func cloneStackTrace(stackTrace *protocol.StackTrace) *protocol.StackTrace {
	var head, tail *protocol.StackTrace
	for stack := stackTrace; stack != nil; stack = stack.Parent {
		segment := *stack
		segment.CallFrames = append([]protocol.RuntimeCallFrame(nil), stack.CallFrames...)
		segment.Parent = nil
		if head == nil {
			head = &segment
		} else {
			tail.Parent = &segment
		}
		tail = &segment
	}
	return head
}

// StackTraceLength 异步栈的段数
func StackTraceLength(stackTrace *protocol.StackTrace) int {
	n := 0
	for stack := stackTrace; stack != nil; stack = stack.Parent {
		n++
	}
	return n
}
