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
)

// Call runs a store call and waits for it at most until ctx is done.
// Errors of the call are classified with Classify; an expired or cancelled
// ctx is reported as ErrStoreUnavailable. A call given up on keeps running
// until the store answers or its own operation timeout expires, so callers
// must not read values set by call after Call returned an error.
func Call(ctx context.Context, op, key string, call func() error) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(op, key, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- call()
	}()

	select {
	case err := <-done:
		return Classify(op, key, err)
	case <-ctx.Done():
		return Unavailable(op, key, ctx.Err())
	}
}
