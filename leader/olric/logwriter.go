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

package olric

import (
	"bytes"
	"io"
	"regexp"

	"github.com/tochemey/goelect/log"
)

// logWriter bridges the olric and memberlist log lines into a log.Logger.
// Lines look like "2025/01/02 15:04:05 [INFO] message".
type logWriter struct {
	logger  log.Logger
	pattern *regexp.Regexp
}

var _ io.Writer = (*logWriter)(nil)

func newLogWriter(logger log.Logger) *logWriter {
	return &logWriter{
		logger:  logger,
		pattern: regexp.MustCompile(`\[(DEBUG|INFO|WARN|ERROR)\] (.+)`),
	}
}

// Write implements io.Writer. Lines without a known level are dropped.
func (w *logWriter) Write(message []byte) (int, error) {
	matches := w.pattern.FindSubmatch(bytes.TrimSpace(message))
	if len(matches) < 3 {
		return len(message), nil
	}

	text := string(matches[2])
	switch string(matches[1]) {
	case "DEBUG":
		w.logger.Debug(text)
	case "INFO":
		w.logger.Info(text)
	case "WARN":
		w.logger.Warn(text)
	case "ERROR":
		w.logger.Error(text)
	}
	return len(message), nil
}
