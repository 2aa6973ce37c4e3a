// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*log)(nil)

type log struct {
	level          zap.AtomicLevel
	writer         io.WriteCloser
	internalLogger *zap.Logger
}

// NewLogger returns a new logger set up according to [config]
func NewLogger(config Config) (Logger, error) {
	encoder, err := config.encoder()
	if err != nil {
		return nil, err
	}
	return newLog(config, encoder, config.writer()), nil
}

// NewWriterLogger returns a logger that writes entries to [w]. Mostly useful
// for tests that inspect the output.
func NewWriterLogger(config Config, w io.Writer) (Logger, error) {
	encoder, err := config.encoder()
	if err != nil {
		return nil, err
	}
	return newLog(config, encoder, nopCloser{Writer: w}), nil
}

func newLog(config Config, encoder zapcore.Encoder, writer io.WriteCloser) *log {
	level := zap.NewAtomicLevelAt(zapcore.Level(config.Level))
	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}
	return &log{
		level:          level,
		writer:         writer,
		internalLogger: logger,
	}
}

func (l *log) Write(p []byte) (int, error) {
	return l.writer.Write(p)
}

func (l *log) Stop() {
	_ = l.internalLogger.Sync()
	_ = l.writer.Close()
}

// Should only be called from [Level] functions.
func (l *log) log(level Level, msg string, fields ...zap.Field) {
	if ce := l.internalLogger.Check(zapcore.Level(level), msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *log) Fatal(msg string, fields ...zap.Field) {
	l.log(Fatal, msg, fields...)
}

func (l *log) Error(msg string, fields ...zap.Field) {
	l.log(Error, msg, fields...)
}

func (l *log) Warn(msg string, fields ...zap.Field) {
	l.log(Warn, msg, fields...)
}

func (l *log) Info(msg string, fields ...zap.Field) {
	l.log(Info, msg, fields...)
}

func (l *log) Trace(msg string, fields ...zap.Field) {
	l.log(Trace, msg, fields...)
}

func (l *log) Debug(msg string, fields ...zap.Field) {
	l.log(Debug, msg, fields...)
}

func (l *log) Verbo(msg string, fields ...zap.Field) {
	l.log(Verbo, msg, fields...)
}

func (l *log) With(fields ...zap.Field) Logger {
	return &log{
		level:          l.level,
		writer:         l.writer,
		internalLogger: l.internalLogger.With(fields...),
	}
}

func (l *log) SetLevel(level Level) {
	l.level.SetLevel(zapcore.Level(level))
}

func (l *log) Enabled(level Level) bool {
	return l.level.Enabled(zapcore.Level(level))
}

func (l *log) StopOnPanic() {
	if r := recover(); r != nil {
		l.Fatal("panicking", zap.Any("reason", r), zap.Stack("from"))
		l.Stop()
		panic(r)
	}
}

func (l *log) RecoverAndPanic(f func()) {
	defer l.StopOnPanic()
	f()
}
