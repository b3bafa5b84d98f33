package utils

import (
	"sync"

	"github.com/fansqz/inspector-debugger/constants"
)

// StatusManager 记录调试会话的状态
// 状态由会话所在的协程写入，DAP连接、HTTP接口等其他协程可以直接读取
type StatusManager struct {
	lock   sync.RWMutex
	status constants.LifecycleStatus
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.Disabled,
	}
}

func (s *StatusManager) Set(status constants.LifecycleStatus) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() constants.LifecycleStatus {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}
