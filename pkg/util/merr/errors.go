// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Server related
	ErrServerClosed = newMingleError("server closed", 1, false)
	ErrServerListen = newMingleError("listen failed", 2, false)

	// Client connection related
	ErrClientNotFound      = newMingleError("client not found", 100, false)
	ErrClientClosed        = newMingleError("client connection closed", 101, false)
	ErrClientAlreadyPaired = newMingleError("client already paired", 102, false)
	ErrClientNotPaired     = newMingleError("client not paired", 103, false)

	// Waiting pool related
	ErrPoolDuplicate = newMingleError("client already waiting", 200, false)

	// Pair related
	ErrPairEnded     = newMingleError("pair already ended", 300, false)
	ErrPairIdentical = newMingleError("cannot pair a client with itself", 301, false)

	// Transport session related
	ErrSessionDuplicate = newMingleError("session id already registered", 400, false)
	ErrSessionNotFound  = newMingleError("session not found", 401, false)
	ErrLineTooLong      = newMingleError("line exceeds maximum length", 402, false)
	ErrSendQueueClosed  = newMingleError("send queue closed", 403, true)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to mingleError
	errUnexpected = newMingleError("unexpected error", (1<<16)-1, false)
)

type mingleError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
}

func newMingleError(msg string, code int32, retriable bool) mingleError {
	return mingleError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}
}

func (e mingleError) code() int32 {
	return e.errCode
}

func (e mingleError) Error() string {
	return e.msg
}

func (e mingleError) Detail() string {
	return e.detail
}

func (e mingleError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(mingleError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
