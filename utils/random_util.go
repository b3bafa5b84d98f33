package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Errorf("[GetUUID] new uuid fail, err = %v", err)
		return uuid.NewString()
	}
	return u1.String()
}

// NewObjectGroup 生成一个求值用的object group名称，释放时可以整组释放
func NewObjectGroup(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
