// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	JSONFormat  = "json"
	PlainFormat = "plain"
)

var errUnknownFormat = errors.New("unknown log format")

// Config defines the configuration of a logger
type Config struct {
	// Name is prepended to every entry of the logger.
	Name string `json:"name"`
	// Level is the minimum level that will be written.
	Level Level `json:"level"`
	// Format is one of [JSONFormat] or [PlainFormat].
	Format string `json:"format"`
	// Directory, if non-empty, makes the logger write to a rotating file
	// inside of it instead of stdout.
	Directory string `json:"directory"`
	// MaxSize is the rotation threshold of the log file, in megabytes.
	MaxSize int `json:"maxSize"`
	// MaxFiles is the number of rotated files to keep.
	MaxFiles int `json:"maxFiles"`
}

// DefaultConfig returns a config that writes INFO and above to stdout.
func DefaultConfig() Config {
	return Config{
		Level:    Info,
		Format:   PlainFormat,
		MaxSize:  8,
		MaxFiles: 7,
	}
}

func (c Config) encoder() (zapcore.Encoder, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	switch strings.ToLower(c.Format) {
	case JSONFormat:
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case PlainFormat, "":
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, c.Format)
	}
}

func (c Config) writer() io.WriteCloser {
	if c.Directory == "" {
		return nopCloser{Writer: os.Stdout}
	}
	name := c.Name
	if name == "" {
		name = "main"
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.Directory, name+".log"),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxFiles,
		Compress:   true,
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
