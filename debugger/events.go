package debugger

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/fansqz/inspector-debugger/constants"
)

// Event 调试会话发出的事件
type Event interface {
	Type() constants.DebuggerEventType
}

type DebuggerWasEnabledEvent struct{}

func (*DebuggerWasEnabledEvent) Type() constants.DebuggerEventType {
	return constants.DebuggerWasEnabled
}

type DebuggerWasDisabledEvent struct{}

func (*DebuggerWasDisabledEvent) Type() constants.DebuggerEventType {
	return constants.DebuggerWasDisabled
}

// BeforeDebuggerPausedEvent 暂停展示之前发出，监听者调用Veto可以拦截这次暂停，
// 被拦截的暂停不会展示，会话会自动step into
type BeforeDebuggerPausedEvent struct {
	Details *PausedDetails
	vetoed  bool
}

func (*BeforeDebuggerPausedEvent) Type() constants.DebuggerEventType {
	return constants.BeforeDebuggerPaused
}

func (b *BeforeDebuggerPausedEvent) Veto() {
	b.vetoed = true
}

func (b *BeforeDebuggerPausedEvent) Vetoed() bool {
	return b.vetoed
}

type DebuggerPausedEvent struct {
	Details *PausedDetails
}

func (*DebuggerPausedEvent) Type() constants.DebuggerEventType {
	return constants.DebuggerPaused
}

type DebuggerResumedEvent struct{}

func (*DebuggerResumedEvent) Type() constants.DebuggerEventType {
	return constants.DebuggerResumed
}

type ParsedScriptSourceEvent struct {
	Script *Script
}

func (*ParsedScriptSourceEvent) Type() constants.DebuggerEventType {
	return constants.ParsedScriptSource
}

type FailedToParseScriptSourceEvent struct {
	Script *Script
}

func (*FailedToParseScriptSourceEvent) Type() constants.DebuggerEventType {
	return constants.FailedToParseScriptSource
}

type GlobalObjectClearedEvent struct{}

func (*GlobalObjectClearedEvent) Type() constants.DebuggerEventType {
	return constants.GlobalObjectCleared
}

type CallFrameSelectedEvent struct {
	CallFrame *CallFrame
}

func (*CallFrameSelectedEvent) Type() constants.DebuggerEventType {
	return constants.CallFrameSelected
}

// listenerRegistry 按key分组的监听者，同一组内按注册顺序回调
type listenerRegistry[K comparable, E any] struct {
	nextID    int
	listeners map[K]*treemap.Map
}

func newListenerRegistry[K comparable, E any]() *listenerRegistry[K, E] {
	return &listenerRegistry[K, E]{
		nextID:    1,
		listeners: map[K]*treemap.Map{},
	}
}

func (l *listenerRegistry[K, E]) add(key K, listener func(E)) int {
	group, ok := l.listeners[key]
	if !ok {
		group = treemap.NewWithIntComparator()
		l.listeners[key] = group
	}
	id := l.nextID
	l.nextID++
	group.Put(id, listener)
	return id
}

func (l *listenerRegistry[K, E]) remove(key K, id int) bool {
	group, ok := l.listeners[key]
	if !ok {
		return false
	}
	if _, found := group.Get(id); !found {
		return false
	}
	group.Remove(id)
	if group.Empty() {
		delete(l.listeners, key)
	}
	return true
}

func (l *listenerRegistry[K, E]) has(key K) bool {
	_, ok := l.listeners[key]
	return ok
}

// dispatch 返回回调的监听者数量
// 先取快照，监听者在回调中增删监听不影响本次分发
func (l *listenerRegistry[K, E]) dispatch(key K, event E) int {
	group, ok := l.listeners[key]
	if !ok {
		return 0
	}
	values := group.Values()
	for _, value := range values {
		value.(func(E))(event)
	}
	return len(values)
}
