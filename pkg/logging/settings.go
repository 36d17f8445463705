package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	initialSampling    = 100
	thereafterSampling = 100

	EncodingJSON    = "json"
	EncodingConsole = "console"
)

type settings struct {
	config *zap.Config
	opts   []zap.Option
}

// Option tunes the logger built by NewZapLogger.
type Option func(s *settings)

// WithService stamps every entry with a service field.
func WithService(name string) Option {
	return func(s *settings) {
		if s.config.InitialFields == nil {
			s.config.InitialFields = make(map[string]any, 1)
		}
		s.config.InitialFields["service"] = name
	}
}

// WithEncoding switches between EncodingJSON and EncodingConsole. Console
// output colors levels and disables sampling so local runs see every line.
func WithEncoding(encoding string) Option {
	return func(s *settings) {
		if encoding != EncodingConsole {
			return
		}
		s.config.Encoding = EncodingConsole
		s.config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		s.config.Sampling = nil
	}
}

func defaultSettings(level zap.AtomicLevel, options ...Option) *settings {
	config := &zap.Config{
		Level:       level,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    initialSampling,
			Thereafter: thereafterSampling,
		},
		Encoding: EncodingJSON,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "@timestamp",
			NameKey:        "logger",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	s := &settings{
		config: config,
		opts: []zap.Option{
			zap.AddCallerSkip(1),
		},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}
