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

// Package credential stores and retrieves the OAuth token record, either
// in Azure Key Vault or in a fallback JSON file, and defines the typed
// error taxonomy for token failures.
package credential

import (
	"context"
	"time"
)

// Record is the persisted OAuth token state. It is replaced wholesale on
// every refresh; there are no partial updates. The JSON layout matches
// the token file written by earlier deployments.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiryTime   string `json:"expiry_time"` // RFC 3339 UTC
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ClientID     string `json:"client_id"`
	UserEmail    string `json:"user_email"`
	Timestamp    string `json:"timestamp"`
}

// Expiry parses the record's expiry time. A missing or malformed value
// returns the zero time, which callers treat as already expired.
func (r *Record) Expiry() time.Time {
	t, err := time.Parse(time.RFC3339, r.ExpiryTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ExpiredAt reports whether the token is expired as of now.
func (r *Record) ExpiredAt(now time.Time) bool {
	return !now.Before(r.Expiry())
}

// ExpiresWithin reports whether the token expires inside the given window
// from now. Used for the proactive refresh decision.
func (r *Record) ExpiresWithin(now time.Time, window time.Duration) bool {
	return r.Expiry().Sub(now) < window
}

// Store persists the single token record for the configured identity.
// Load returns (nil, nil) when no record exists.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context) error
}
