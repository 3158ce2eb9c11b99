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

// Candidate is an application-identified contender for the leadership of a role.
//
// OnGranted runs on a goroutine owned by the election engine. It may block
// for as long as the candidate wants to act as leader; it should return
// once ctx.Done is closed. Returning an error or panicking relinquishes the
// leadership. OnRevoked is called exactly once for every OnGranted, after
// OnGranted has returned.
type Candidate interface {
	// ID returns the stable identifier of the candidate
	ID() string
	// Role returns the name of the role the candidate contends for
	Role() string
	// OnGranted is invoked when leadership has been acquired
	OnGranted(ctx Context) error
	// OnRevoked is invoked when leadership has been lost or relinquished
	OnRevoked(ctx Context) error
}
