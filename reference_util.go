package main

import (
	"encoding/json"
	"fmt"
	"sync"

	e "github.com/fansqz/inspector-debugger/error"
	"github.com/sirupsen/logrus"
)

type ReferenceType string

const (
	// ScopeType 调用帧上的一个作用域
	ScopeType ReferenceType = "s"
	// ObjectType 可以展开的远程对象
	ObjectType ReferenceType = "o"
)

// ReferenceUtil DAP的variablesReference和作用域、对象之间的映射
// 远程对象只在一次暂停内有效，恢复执行以后需要Reset
type ReferenceUtil struct {
	nextRef       int
	mutex         sync.RWMutex
	refInt2Struct map[int]string
	refStruct2Int map[string]int
}

// ReferenceStruct 定义的引用结构体
type ReferenceStruct struct {
	Type       ReferenceType `json:"type"`
	FrameIndex int           `json:"frameIndex,omitempty"`
	ScopeIndex int           `json:"scopeIndex,omitempty"`
	ObjectID   string        `json:"objectId,omitempty"`
}

func NewScopeReferenceStruct(frameIndex int, scopeIndex int) *ReferenceStruct {
	return &ReferenceStruct{
		Type:       ScopeType,
		FrameIndex: frameIndex,
		ScopeIndex: scopeIndex,
	}
}

func NewObjectReferenceStruct(objectID string) *ReferenceStruct {
	return &ReferenceStruct{
		Type:     ObjectType,
		ObjectID: objectID,
	}
}

func NewReferenceUtil() *ReferenceUtil {
	return &ReferenceUtil{
		nextRef:       1000,
		refInt2Struct: map[int]string{},
		refStruct2Int: map[string]int{},
	}
}

// ParseVariableReference 解析引用
func (r *ReferenceUtil) ParseVariableReference(reference int) (*ReferenceStruct, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	refStr, ok := r.refInt2Struct[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %d", e.ErrUnknownReference, reference)
	}
	answer := &ReferenceStruct{}
	if err := json.Unmarshal([]byte(refStr), answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// CreateVariableReference 创建引用，同一个结构体多次创建返回同一个引用
func (r *ReferenceUtil) CreateVariableReference(refStruct *ReferenceStruct) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	data, err := json.Marshal(refStruct)
	if err != nil {
		logrus.Errorf("[ReferenceUtil] convert reference %+v fail, err = %v", refStruct, err)
		return 0, err
	}
	strRef := string(data)
	if intRef, ok := r.refStruct2Int[strRef]; ok {
		return intRef, nil
	}
	intRef := r.nextRef
	r.nextRef++
	r.refStruct2Int[strRef] = intRef
	r.refInt2Struct[intRef] = strRef
	return intRef, nil
}

// Reset 清空所有引用，引用编号继续递增，旧的引用不会被误用
func (r *ReferenceUtil) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.refInt2Struct = map[int]string{}
	r.refStruct2Int = map[string]int{}
}
