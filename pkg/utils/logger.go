package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger создает структурированный zap-логгер.
//
// Параметры:
//   - level: debug | info | warn | error (пустое значение = info)
//   - format: json | console
//
// json предназначен для прода (одна строка на запись, машиночитаемо),
// console — для локальной разработки.
func InitLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(format) {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("unknown log level %q", level)
		}
		lvl = parsed
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	// Семплирование отключено: поток логов дашборда невелик,
	// а потеря записей о переходах сделок затрудняет разбор инцидентов
	cfg.Sampling = nil

	return cfg.Build()
}
