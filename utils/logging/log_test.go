// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogWritesAtOrAboveLevel(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	log, err := NewWriterLogger(Config{Level: Info, Format: JSONFormat}, &buf)
	require.NoError(err)

	log.Debug("hidden")
	require.Empty(buf.Bytes())

	log.Info("rebuilt", zap.Int("buckets", 3))

	var entry map[string]interface{}
	require.NoError(json.Unmarshal(buf.Bytes(), &entry))
	require.Equal("rebuilt", entry["msg"])
	require.Equal("INFO", entry["level"])
	require.InDelta(3, entry["buckets"], 0)
}

func TestLogSetLevel(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	log, err := NewWriterLogger(Config{Level: Error}, &buf)
	require.NoError(err)

	require.False(log.Enabled(Verbo))
	log.SetLevel(Verbo)
	require.True(log.Enabled(Verbo))

	log.Verbo("now visible")
	require.Contains(buf.String(), "now visible")
	require.Contains(buf.String(), "VERBO")
}

func TestLogWithFields(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	log, err := NewWriterLogger(Config{Level: Info, Format: JSONFormat, Name: "router"}, &buf)
	require.NoError(err)

	log.With(zap.String("mode", "consensus")).Warn("throttled")

	var entry map[string]interface{}
	require.NoError(json.Unmarshal(buf.Bytes(), &entry))
	require.Equal("consensus", entry["mode"])
	require.Equal("router", entry["logger"])
}

func TestLogFatalDoesNotExit(t *testing.T) {
	require := require.New(t)

	require.Equal(zapcore.DPanicLevel, zapcore.Level(Fatal))

	var buf bytes.Buffer
	log, err := NewWriterLogger(Config{Level: Info, Format: JSONFormat}, &buf)
	require.NoError(err)

	require.NotPanics(func() {
		log.Fatal("couldn't start node")
	})

	var entry map[string]interface{}
	require.NoError(json.Unmarshal(buf.Bytes(), &entry))
	require.Equal("FATAL", entry["level"])
}

func TestNewLoggerUnknownFormat(t *testing.T) {
	_, err := NewLogger(Config{Format: "xml"})
	require.ErrorIs(t, err, errUnknownFormat)
}

func TestRecoverAndPanic(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriterLogger(Config{Level: Info}, &buf)
	require.NoError(t, err)

	require.Panics(t, func() {
		log.RecoverAndPanic(func() {
			panic("DON'T PANIC!")
		})
	})
	require.Contains(t, buf.String(), "panicking")
}

func TestNoLog(t *testing.T) {
	var log Logger = NoLog{}
	log.Info("ignored")
	require.False(t, log.Enabled(Fatal))

	_, err := log.Write([]byte("x"))
	require.ErrorIs(t, err, errNoLoggerWrite)
}
