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

package leader

import (
	"github.com/tochemey/goelect/log"
)

// LoggingListener writes every leadership event to a logger
type LoggingListener struct {
	logger log.Logger
	level  log.Level
}

// enforce compilation error
var _ Listener = (*LoggingListener)(nil)

// NewLoggingListener creates a LoggingListener writing at the named level.
// An empty level means debug. Accepted levels are debug, info, warn and error.
func NewLoggingListener(logger log.Logger, level string) (*LoggingListener, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}

	lvl := log.DebugLevel
	if level != "" {
		var err error
		if lvl, err = log.ParseLevel(level); err != nil {
			return nil, err
		}
	}

	return &LoggingListener{logger: logger, level: lvl}, nil
}

// OnEvent implements Listener
func (l *LoggingListener) OnEvent(event Event) {
	switch l.level {
	case log.ErrorLevel:
		l.logger.Errorf("leader event: %s", event)
	case log.WarningLevel:
		l.logger.Warnf("leader event: %s", event)
	case log.InfoLevel:
		l.logger.Infof("leader event: %s", event)
	default:
		l.logger.Debugf("leader event: %s", event)
	}
}
