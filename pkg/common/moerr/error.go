// Copyright 2023 The GridJoin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"fmt"
)

const (
	// 0 - 99 is OK. They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok uint16 = 0

	// Group 1: engine internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102
	ErrOOM      uint16 = 20103

	// Group 2: invalid input
	ErrInvalidInput uint16 = 20200
	ErrInvalidArg   uint16 = 20201
	ErrBadConfig    uint16 = 20202

	// Group 3: join execution
	ErrCapacityExhausted uint16 = 20300
	ErrDeviceFault       uint16 = 20301

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	errorMsgOrFormat string
	errorCode        uint16
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	Ok: {"ok", Ok},

	ErrInternal: {"internal error: %s", ErrInternal},
	ErrNYI:      {"%s is not yet implemented", ErrNYI},
	ErrOOM:      {"out of memory: %s", ErrOOM},

	ErrInvalidInput: {"invalid input: %s", ErrInvalidInput},
	ErrInvalidArg:   {"invalid argument %s, bad value %v", ErrInvalidArg},
	ErrBadConfig:    {"invalid configuration: %s", ErrBadConfig},

	ErrCapacityExhausted: {"hash table capacity exhausted: %s", ErrCapacityExhausted},
	ErrDeviceFault:       {"device fault: %v", ErrDeviceFault},
}

// Error is the only error type the engine surfaces.  It carries a stable
// numeric code so that callers can branch on failure classes without
// string matching.
type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}

func newError(code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Errorf("not exist MOErrorCode: %d", code))
	}
	var err *Error
	if len(args) == 0 {
		err = &Error{
			code:    code,
			message: item.errorMsgOrFormat,
		}
	} else {
		err = &Error{
			code:    code,
			message: fmt.Sprintf(item.errorMsgOrFormat, args...),
		}
	}
	return err
}

// IsMoErrCode reports whether err is an engine error with the given code.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	me, ok := e.(*Error)
	if !ok {
		return false
	}
	return me.code == rc
}

func NewInternalError(msg string, args ...any) *Error {
	return newError(ErrInternal, fmt.Sprintf(msg, args...))
}

func NewNYI(msg string, args ...any) *Error {
	return newError(ErrNYI, fmt.Sprintf(msg, args...))
}

func NewOOM(msg string, args ...any) *Error {
	return newError(ErrOOM, fmt.Sprintf(msg, args...))
}

func NewInvalidInput(msg string, args ...any) *Error {
	return newError(ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidArg(arg string, val any) *Error {
	return newError(ErrInvalidArg, arg, val)
}

func NewBadConfig(msg string, args ...any) *Error {
	return newError(ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewCapacityExhausted(msg string, args ...any) *Error {
	return newError(ErrCapacityExhausted, fmt.Sprintf(msg, args...))
}

func NewDeviceFault(cause any) *Error {
	return newError(ErrDeviceFault, cause)
}
