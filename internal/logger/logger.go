package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// 日志级别常量
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger 统一日志接口
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})

	// 设置额外字段
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	// 获取输出Writer
	GetOutput() io.Writer
}

// Config 日志配置
type Config struct {
	Level       string
	ServiceName string
	JSONFormat  bool
}

// logrusLogger logrus实现的日志器
type logrusLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogger 创建一个新的日志器
func NewLogger(cfg Config) Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.JSONFormat {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	l.SetOutput(os.Stdout)

	fields := logrus.Fields{}
	if cfg.ServiceName != "" {
		fields["service"] = cfg.ServiceName
	}

	return &logrusLogger{
		logger: l,
		fields: fields,
	}
}

func (l *logrusLogger) entry() *logrus.Entry {
	return l.logger.WithFields(l.fields)
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.entry().Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

func (l *logrusLogger) Warn(format string, args ...interface{}) {
	l.entry().Warnf(format, args...)
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.entry().Errorf(format, args...)
}

func (l *logrusLogger) Fatal(format string, args ...interface{}) {
	l.entry().Fatalf(format, args...)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &logrusLogger{logger: l.logger, fields: fields}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &logrusLogger{logger: l.logger, fields: merged}
}

func (l *logrusLogger) WithError(err error) Logger {
	return l.WithField("error", err.Error())
}

func (l *logrusLogger) GetOutput() io.Writer {
	return l.logger.Out
}
