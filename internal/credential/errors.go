// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package credential

import (
	"errors"
	"fmt"
)

// Kind classifies credential failures so callers can branch on the cause
// without string matching.
type Kind int

const (
	// KindNoCredential means no token record exists in the store.
	KindNoCredential Kind = iota + 1
	// KindExpired means the token is past expiry and could not be refreshed.
	KindExpired
	// KindRefreshRejected means the token endpoint returned a non-200.
	KindRefreshRejected
	// KindStoreFailed means a refreshed token could not be persisted.
	KindStoreFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoCredential:
		return "no_credential"
	case KindExpired:
		return "expired"
	case KindRefreshRejected:
		return "refresh_rejected"
	case KindStoreFailed:
		return "store_failed"
	default:
		return "unknown"
	}
}

// Error is a typed credential failure. Status and Body are populated for
// refresh rejections only.
type Error struct {
	Kind   Kind
	Status int
	Body   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRefreshRejected:
		return fmt.Sprintf("credential: token refresh rejected (HTTP %d): %s", e.Status, e.Body)
	case KindStoreFailed:
		return fmt.Sprintf("credential: persist refreshed token: %v", e.Err)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("credential: %s: %s", e.Kind, e.Detail)
		}
		return fmt.Sprintf("credential: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoCredential reports a missing token record.
func ErrNoCredential() error {
	return &Error{Kind: KindNoCredential, Detail: "no token record in store"}
}

// ErrExpired reports a token past expiry with no viable refresh path.
func ErrExpired(detail string) error {
	return &Error{Kind: KindExpired, Detail: detail}
}

// ErrRefreshRejected reports a non-200 from the token endpoint. The body
// is truncated to keep log lines bounded.
func ErrRefreshRejected(status int, body string) error {
	if len(body) > 512 {
		body = body[:512]
	}
	return &Error{Kind: KindRefreshRejected, Status: status, Body: body}
}

// ErrStoreFailed reports that a refreshed token could not be persisted.
func ErrStoreFailed(err error) error {
	return &Error{Kind: KindStoreFailed, Err: err}
}

// IsKind reports whether err is a credential Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}
