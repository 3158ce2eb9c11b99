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

package validation

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxIDLength = 255

// idPattern accepts word characters plus non-leading '-', '_' and '.'.
// Such identifiers are safe in etcd and consul keys, ZooKeeper paths and
// olric map keys.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*$`)

// ValidatorFunc adapts a function to a Validator
type ValidatorFunc func() error

// Validate implements Validator
func (f ValidatorFunc) Validate() error {
	return f()
}

// NewEmptyStringValidator requires the named field to be non blank
func NewEmptyStringValidator(field, value string) Validator {
	return ValidatorFunc(func() error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("the [%s] is required", field)
		}
		return nil
	})
}

// NewPositiveDurationValidator requires the named duration to be greater than zero
func NewPositiveDurationValidator(field string, duration time.Duration) Validator {
	return ValidatorFunc(func() error {
		if duration <= 0 {
			return fmt.Errorf("the [%s] must be greater than zero", field)
		}
		return nil
	})
}

// NewIDValidator requires the named field to be an identifier that can be
// embedded in a backend key or node path
func NewIDValidator(field, id string) Validator {
	return ValidatorFunc(func() error {
		if len(id) > maxIDLength {
			return fmt.Errorf("the [%s]=(%s) exceeds %d characters", field, id, maxIDLength)
		}
		if !idPattern.MatchString(id) {
			return fmt.Errorf("the [%s]=(%s) must contain only word characters (i.e. [a-zA-Z0-9] plus non-leading '-', '_' or '.')", field, id)
		}
		return nil
	})
}

// NewTCPAddressValidator requires address to be a host:port pair.
// Port 0 is accepted for bind addresses.
func NewTCPAddressValidator(address string) Validator {
	return ValidatorFunc(func() error {
		host, port, err := net.SplitHostPort(strings.TrimSpace(address))
		if err != nil {
			return fmt.Errorf("invalid address=(%s): %w", address, err)
		}

		number, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid address=(%s): %w", address, err)
		}

		if host == "" || number < 0 || number > 65535 {
			return fmt.Errorf("invalid address=(%s)", address)
		}
		return nil
	})
}
