// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kvstore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrStoreUnavailable matches (with errors.Is) every error caused by the
// store being unreachable or not answering in time.
var ErrStoreUnavailable = errors.New("key-value store unavailable")

// unavailableError wraps the original store error.
type unavailableError struct {
	op  string
	key string
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s %q: %v: %v", e.op, e.key, ErrStoreUnavailable, e.err)
}

// Unwrap returns the original store error.
func (e *unavailableError) Unwrap() error {
	return e.err
}

// Is makes the error match ErrStoreUnavailable.
func (e *unavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable marks err as caused by an unavailable store.
func Unavailable(op, key string, err error) error {
	return &unavailableError{op: op, key: key, err: err}
}

// Classify returns err marked as ErrStoreUnavailable if it was caused by
// a timeout, cancellation or lost connection. Any other error is returned
// unmodified.
func Classify(op, key string, err error) error {
	if err == nil || !IsUnavailable(err) {
		return err
	}
	return Unavailable(op, key, err)
}

// IsUnavailable returns true for errors reported by a store that could not be
// reached within the operation timeout.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(errors.Cause(err)) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return true
	}
	return false
}
