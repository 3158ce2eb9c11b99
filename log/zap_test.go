/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package log

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger(t *testing.T) {
	t.Run("With unknown level falls back to debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(42, buffer)
		require.Equal(t, DebugLevel, logger.LogLevel())

		logger.Debug("test debug")
		require.NoError(t, logger.Sync())

		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		require.Equal(t, "test debug", msg)

		lvl, err := extractField(buffer.Bytes(), "level")
		require.NoError(t, err)
		require.Equal(t, DebugLevel.String(), lvl)
	})
	t.Run("With info level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		require.Equal(t, InfoLevel, logger.LogLevel())
		require.False(t, logger.Enabled(DebugLevel))
		require.True(t, logger.Enabled(ErrorLevel))

		logger.Debugf("hidden %s", "debug")
		require.Empty(t, buffer.Bytes())

		logger.Infof("leader %s granted", "worker")
		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		require.Equal(t, "leader worker granted", msg)
	})
	t.Run("With warn level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(WarningLevel, buffer)
		require.Equal(t, WarningLevel, logger.LogLevel())

		logger.Info("hidden")
		require.Empty(t, buffer.Bytes())
		logger.Warn("heartbeat failed")

		lvl, err := extractField(buffer.Bytes(), "level")
		require.NoError(t, err)
		require.Equal(t, "warn", lvl)
	})
	t.Run("With error level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(ErrorLevel, buffer)
		require.Equal(t, ErrorLevel, logger.LogLevel())

		logger.Warnf("hidden %d", 1)
		require.Empty(t, buffer.Bytes())
		logger.Errorf("callback failed: %v", io.EOF)

		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		require.Equal(t, "callback failed: EOF", msg)
	})
	t.Run("With fatal level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(FatalLevel, buffer)
		require.Equal(t, FatalLevel, logger.LogLevel())
		require.False(t, logger.Enabled(ErrorLevel))
		logger.Error("hidden")
		require.Empty(t, buffer.Bytes())
	})
}

func TestZapWith(t *testing.T) {
	t.Run("With structured fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("role", "scheduler", "candidate", "node-1").Info("granted")

		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &m))
		require.Contains(t, m, "role")
		require.Contains(t, m, "candidate")
	})
	t.Run("With no fields returns same logger", func(t *testing.T) {
		logger := NewZap(InfoLevel, io.Discard)
		assert.Equal(t, logger, logger.With())
		assert.Equal(t, logger, logger.With(1, "ignored"))
	})
	t.Run("With dangling value", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("a", 1, "orphan").Info("msg")

		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &m))
		require.Contains(t, m, "a")
		require.Contains(t, m, "_")
	})
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		expected Level
	}{
		{name: "debug", expected: DebugLevel},
		{name: "INFO", expected: InfoLevel},
		{name: "warn", expected: WarningLevel},
		{name: "Warning", expected: WarningLevel},
		{name: " error ", expected: ErrorLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			level, err := ParseLevel(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}

	t.Run("With unknown level", func(t *testing.T) {
		level, err := ParseLevel("trace")
		require.Error(t, err)
		assert.Equal(t, InvalidLevel, level)
		assert.Equal(t, "invalid", level.String())
	})
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger

	logger.Debug("debug")
	logger.Debugf("debug %s", "msg")
	logger.Info("info")
	logger.Infof("info %s", "msg")
	logger.Warn("warn")
	logger.Warnf("warn %s", "msg")
	logger.Error("error")
	logger.Errorf("error %s", "msg")

	require.Equal(t, InvalidLevel, logger.LogLevel())
	require.Equal(t, DiscardLogger, logger.With("key", "value"))
	require.False(t, logger.Enabled(ErrorLevel))
}

func extractField(bytes []byte, field string) (string, error) {
	c := make(map[string]json.RawMessage)
	if err := json.Unmarshal(bytes, &c); err != nil {
		return "", err
	}
	if v, ok := c[field]; ok {
		return strconv.Unquote(string(v))
	}
	return "", nil
}
