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

package election

import (
	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/leader"
)

// ValidateCandidate checks that the candidate can take part in an election.
// The role is embedded in backend keys and paths, hence restricted to word characters.
func ValidateCandidate(candidate leader.Candidate) error {
	if candidate == nil {
		return gerrors.ErrCandidateRequired
	}

	err := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("ID", candidate.ID())).
		AddValidator(validation.NewEmptyStringValidator("Role", candidate.Role())).
		AddValidator(validation.NewIDValidator("Role", candidate.Role())).
		Validate()
	if err != nil {
		return gerrors.NewErrInvalidConfig(err)
	}
	return nil
}
