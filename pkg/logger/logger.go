// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}
	if bizID, ok := ctx.Value("biz_id").(string); ok {
		l = l.With().Str("biz_id", bizID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// SolveStart 记录求解开始
func (l *SchedulerLogger) SolveStart(bizID string, staff, shifts int) {
	l.base.Info().
		Str("biz_id", bizID).
		Int("staff", staff).
		Int("shifts", shifts).
		Msg("开始生成排班")
}

// SolveComplete 记录求解完成
func (l *SchedulerLogger) SolveComplete(bizID string, duration time.Duration, assigned, unresolved int, confidence float64) {
	l.base.Info().
		Str("biz_id", bizID).
		Dur("duration", duration).
		Int("assigned", assigned).
		Int("unresolved", unresolved).
		Float64("confidence", confidence).
		Msg("排班生成完成")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// SolveTimeout 记录求解超时
func (l *SchedulerLogger) SolveTimeout(bizID string, assigned int) {
	l.base.Warn().
		Str("biz_id", bizID).
		Int("assigned", assigned).
		Msg("求解超时，返回部分结果")
}

// PublishLogger 发布流程专用日志器
type PublishLogger struct {
	base *zerolog.Logger
}

// NewPublishLogger 创建发布流程日志器
func NewPublishLogger() *PublishLogger {
	l := Get().With().Str("component", "publish").Logger()
	return &PublishLogger{base: &l}
}

// PublishComplete 记录发布完成
func (l *PublishLogger) PublishComplete(draftID string, assignments, notifications, understaffed int) {
	l.base.Info().
		Str("draft_id", draftID).
		Int("assignments", assignments).
		Int("notifications", notifications).
		Int("understaffed", understaffed).
		Msg("排班发布完成")
}

// PublishFailed 记录发布失败
func (l *PublishLogger) PublishFailed(draftID string, err error) {
	l.base.Error().
		Str("draft_id", draftID).
		Err(err).
		Msg("排班发布失败")
}
