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

// Package token manages the OAuth access/refresh token pair for the
// configured mailbox identity: proactive refresh inside the near-expiry
// window, reactive refresh on hard expiry, and persistence through the
// credential store. Implements oauth2.TokenSource so provider clients can
// be built with oauth2.NewClient.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/bcem/scribe/internal/credential"
)

// refreshWindow is the near-expiry period during which a refresh is
// attempted proactively. A failed proactive refresh soft-degrades to the
// still-valid current token instead of failing the caller.
const refreshWindow = 5 * time.Minute

// Manager owns the token lifecycle for one identity. Safe for use from a
// single orchestration run; concurrent runs against the same identity
// would race on refresh and are not supported.
type Manager struct {
	store      credential.Store
	httpClient *http.Client
	tokenURL   string
	clientID   string
	scope      string
	userEmail  string
	graphURL   string
	now        func() time.Time
}

// ManagerConfig holds the dependencies and settings for the token manager.
type ManagerConfig struct {
	Store     credential.Store
	ClientID  string
	TenantID  string
	Scope     string
	UserEmail string

	// HTTPClient and TokenURL are overridable for tests; both default.
	HTTPClient   *http.Client
	TokenURL     string
	GraphBaseURL string
}

// NewManager creates a token manager for the configured identity.
func NewManager(cfg ManagerConfig) *Manager {
	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	graphURL := cfg.GraphBaseURL
	if graphURL == "" {
		graphURL = "https://graph.microsoft.com/v1.0"
	}

	return &Manager{
		store:      cfg.Store,
		httpClient: httpClient,
		tokenURL:   tokenURL,
		clientID:   cfg.ClientID,
		scope:      cfg.Scope,
		userEmail:  cfg.UserEmail,
		graphURL:   graphURL,
		now:        time.Now,
	}
}

// AccessToken returns a valid access token, refreshing when expired or
// near expiry. Failures carry a credential.Error kind.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load token record: %w", err)
	}
	if rec == nil || rec.AccessToken == "" {
		return "", credential.ErrNoCredential()
	}

	now := m.now().UTC()

	if rec.ExpiredAt(now) {
		if rec.RefreshToken == "" {
			return "", credential.ErrExpired("token expired and no refresh token available")
		}
		refreshed, err := m.refresh(ctx, rec)
		if err != nil {
			// Refresh rejections and persist failures keep their own kind;
			// transport faults surface as Expired.
			if credential.IsKind(err, credential.KindRefreshRejected) || credential.IsKind(err, credential.KindStoreFailed) {
				return "", err
			}
			return "", credential.ErrExpired(fmt.Sprintf("token expired and refresh failed: %v", err))
		}
		return refreshed.AccessToken, nil
	}

	if rec.ExpiresWithin(now, refreshWindow) && rec.RefreshToken != "" {
		refreshed, err := m.refresh(ctx, rec)
		if err != nil {
			// Soft-degrade: the current token is still technically valid,
			// so favour availability over freshness.
			slog.Warn("proactive token refresh failed, using current token",
				"user_email", rec.UserEmail,
				"expires_at", rec.ExpiryTime,
				"err", err,
			)
			return rec.AccessToken, nil
		}
		return refreshed.AccessToken, nil
	}

	return rec.AccessToken, nil
}

// Token satisfies oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	access, err := m.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}

// refresh performs the refresh round-trip and persists the new record.
// The refresh is not considered successful unless persistence succeeds —
// otherwise the next run would start from a token the provider may have
// already rotated away.
func (m *Manager) refresh(ctx context.Context, rec *credential.Record) (*credential.Record, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.clientID)
	form.Set("refresh_token", rec.RefreshToken)
	form.Set("scope", m.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, credential.ErrRefreshRejected(resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	now := m.now().UTC()
	expiresIn := payload.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}

	refreshToken := payload.RefreshToken
	if refreshToken == "" {
		// Refresh tokens are not always rotated; keep the old one.
		refreshToken = rec.RefreshToken
	}
	tokenType := payload.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	newRec := &credential.Record{
		AccessToken:  payload.AccessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		ExpiryTime:   now.Add(time.Duration(expiresIn) * time.Second).Format(time.RFC3339),
		TokenType:    tokenType,
		Scope:        payload.Scope,
		ClientID:     m.clientID,
		UserEmail:    m.userEmail,
		Timestamp:    now.Format(time.RFC3339),
	}

	if err := m.store.Save(ctx, newRec); err != nil {
		return nil, credential.ErrStoreFailed(err)
	}

	slog.Info("access token refreshed",
		"user_email", newRec.UserEmail,
		"expires_at", newRec.ExpiryTime,
	)

	return newRec, nil
}

// Refresh forces a refresh round-trip regardless of expiry and returns
// the persisted record. Used by the setup command for token maintenance.
func (m *Manager) Refresh(ctx context.Context) (*credential.Record, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token record: %w", err)
	}
	if rec == nil || rec.AccessToken == "" {
		return nil, credential.ErrNoCredential()
	}
	if rec.RefreshToken == "" {
		return nil, credential.ErrExpired("no refresh token available")
	}
	return m.refresh(ctx, rec)
}

// Identity holds the result of a token verification call.
type Identity struct {
	Valid       bool
	DisplayName string
	Mail        string
	UserID      string
	Detail      string
}

// Verify calls the identity endpoint with the current token. Used for
// diagnostics only; it never gates the workflow.
func (m *Manager) Verify(ctx context.Context) Identity {
	access, err := m.AccessToken(ctx)
	if err != nil {
		return Identity{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.graphURL+"/me", nil)
	if err != nil {
		return Identity{Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Identity{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Identity{Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var user struct {
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		ID                string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Identity{Detail: fmt.Sprintf("decode identity response: %v", err)}
	}

	mail := user.Mail
	if mail == "" {
		mail = user.UserPrincipalName
	}

	return Identity{
		Valid:       true,
		DisplayName: user.DisplayName,
		Mail:        mail,
		UserID:      user.ID,
	}
}
