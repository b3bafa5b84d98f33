package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 日志写入logPath，文件无法打开时输出到stderr
func SetupLogger(logPath string, level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(parsed)
	} else {
		logrus.Warnf("[Logger] unknown log level %q, use info", level)
		logrus.SetLevel(logrus.InfoLevel)
	}
	if logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		logrus.Warnf("[Logger] create log dir fail, err = %v", err)
		return
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.Warnf("[Logger] open log file %s fail, err = %v", logPath, err)
		return
	}
	logFile = file
	logrus.SetOutput(logFile)
}

func CloseLogger() {
	if logFile != nil {
		logrus.SetOutput(os.Stderr)
		_ = logFile.Close()
		logFile = nil
	}
}
