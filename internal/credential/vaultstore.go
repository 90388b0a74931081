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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// VaultStore keeps the token record as a JSON-valued secret in Azure Key
// Vault. Authentication goes through the default credential chain
// (managed identity in production, environment or CLI in development).
type VaultStore struct {
	client     *azsecrets.Client
	secretName string
}

// NewVaultStore creates a Key Vault backed store. secretName defaults to
// "scribe-oauth-token" when empty.
func NewVaultStore(vaultURL, secretName string) (*VaultStore, error) {
	if secretName == "" {
		secretName = "scribe-oauth-token"
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("build Azure credential chain: %w", err)
	}

	client, err := azsecrets.NewClient(strings.TrimRight(vaultURL, "/"), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("build Key Vault client: %w", err)
	}

	slog.Info("key vault credential store initialised", "vault", vaultURL, "secret", secretName)

	return &VaultStore{client: client, secretName: secretName}, nil
}

// Load fetches and decodes the token secret. A missing secret is not an
// error — it means no credential has been provisioned yet.
func (s *VaultStore) Load(ctx context.Context) (*Record, error) {
	resp, err := s.client.GetSecret(ctx, s.secretName, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get secret %s: %w", s.secretName, err)
	}

	if resp.Value == nil || *resp.Value == "" {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(*resp.Value), &rec); err != nil {
		return nil, fmt.Errorf("parse secret %s: %w", s.secretName, err)
	}
	return &rec, nil
}

// Save serialises the record and overwrites the secret.
func (s *VaultStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}

	value := string(data)
	if _, err := s.client.SetSecret(ctx, s.secretName, azsecrets.SetSecretParameters{Value: &value}, nil); err != nil {
		return fmt.Errorf("set secret %s: %w", s.secretName, err)
	}
	return nil
}

// Delete removes the token secret. An already-absent secret succeeds.
func (s *VaultStore) Delete(ctx context.Context) error {
	if _, err := s.client.DeleteSecret(ctx, s.secretName, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete secret %s: %w", s.secretName, err)
	}
	return nil
}

// SelectConfig carries the settings the store selection needs.
type SelectConfig struct {
	KeyVaultURL       string
	SecretName        string
	FallbackFile      string
	AllowFileFallback bool
}

// Select picks the credential store: Key Vault when configured and
// reachable, otherwise the file fallback when allowed. Mirrors the
// original deployment's chain so existing token material keeps working.
func Select(cfg SelectConfig) (Store, error) {
	if cfg.KeyVaultURL != "" {
		store, err := NewVaultStore(cfg.KeyVaultURL, cfg.SecretName)
		if err == nil {
			return store, nil
		}
		if !cfg.AllowFileFallback {
			return nil, fmt.Errorf("key vault store unavailable and file fallback disabled: %w", err)
		}
		slog.Warn("key vault store unavailable, falling back to file storage", "err", err)
	}

	if cfg.KeyVaultURL == "" && !cfg.AllowFileFallback {
		return nil, fmt.Errorf("no key vault configured and file fallback disabled")
	}

	return NewFileStore(cfg.FallbackFile), nil
}
