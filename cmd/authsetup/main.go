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

// Scribe — Authentication Setup
//
// Interactive bootstrap and diagnostics for the OAuth credential:
// mints the initial token record via the device-code grant, verifies the
// stored token against the identity endpoint, forces a refresh
// round-trip, or provisions the workbook header row.
//
// Usage:
//
//	go run ./cmd/authsetup/              # device-code bootstrap
//	go run ./cmd/authsetup/ --verify     # check stored token
//	go run ./cmd/authsetup/ --refresh    # force a refresh round-trip
//	go run ./cmd/authsetup/ --init-sheet # write workbook headers
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/bcem/scribe/internal/config"
	"github.com/bcem/scribe/internal/credential"
	"github.com/bcem/scribe/internal/msgraph"
	"github.com/bcem/scribe/internal/sheet"
	"github.com/bcem/scribe/internal/token"
)

func main() {
	verifyFlag := flag.Bool("verify", false, "Verify the stored token against the identity endpoint")
	refreshFlag := flag.Bool("refresh", false, "Force a token refresh round-trip")
	initSheetFlag := flag.Bool("init-sheet", false, "Write the workbook header row and column widths")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := credential.Select(credential.SelectConfig{
		KeyVaultURL:       cfg.KeyVaultURL,
		SecretName:        cfg.SecretName,
		FallbackFile:      cfg.TokenFile,
		AllowFileFallback: cfg.AllowFileFallback,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: no credential store available: %v\n", err)
		os.Exit(1)
	}

	manager := token.NewManager(token.ManagerConfig{
		Store:     store,
		ClientID:  cfg.ClientID,
		TenantID:  cfg.TenantID,
		Scope:     cfg.Scope,
		UserEmail: cfg.UserEmail,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	switch {
	case *verifyFlag:
		verify(ctx, manager)
	case *refreshFlag:
		refresh(ctx, manager)
	case *initSheetFlag:
		initSheet(ctx, manager, cfg.ExcelFileName)
	default:
		bootstrap(ctx, cfg, store)
	}
}

// bootstrap runs the device-code grant and persists the initial token
// record.
func bootstrap(ctx context.Context, cfg *config.Config, store credential.Store) {
	oauthCfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: microsoft.AzureADEndpoint(cfg.TenantID),
		Scopes:   strings.Fields(cfg.Scope),
	}

	da, err := oauthCfg.DeviceAuth(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: start device authorization: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("To sign in, open %s and enter the code: %s\n", da.VerificationURI, da.UserCode)
	fmt.Println("Waiting for sign-in to complete...")

	tok, err := oauthCfg.DeviceAccessToken(ctx, da)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: device authorization failed: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	rec := &credential.Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    int(time.Until(tok.Expiry).Seconds()),
		ExpiryTime:   tok.Expiry.UTC().Format(time.RFC3339),
		TokenType:    tok.TokenType,
		Scope:        cfg.Scope,
		ClientID:     cfg.ClientID,
		UserEmail:    cfg.UserEmail,
		Timestamp:    now.Format(time.RFC3339),
	}

	if err := store.Save(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: persist token record: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token stored. Expires at %s.\n", rec.ExpiryTime)
}

func verify(ctx context.Context, manager *token.Manager) {
	id := manager.Verify(ctx)
	if !id.Valid {
		fmt.Fprintf(os.Stderr, "Token verification failed: %s\n", id.Detail)
		os.Exit(1)
	}
	fmt.Printf("Token valid. Signed in as %s <%s> (id %s).\n", id.DisplayName, id.Mail, id.UserID)
}

func refresh(ctx context.Context, manager *token.Manager) {
	rec, err := manager.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Token refreshed. New expiry: %s.\n", rec.ExpiryTime)
}

func initSheet(ctx context.Context, manager *token.Manager, fileName string) {
	httpClient := oauth2.NewClient(ctx, manager)
	writer := sheet.NewWriter(msgraph.NewWorkbookClient(httpClient, ""), fileName)

	if err := writer.VerifyAccess(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Workbook access check failed: %v\n", err)
		os.Exit(1)
	}
	if err := writer.WriteHeaders(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Header initialisation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Workbook %q initialised.\n", fileName)
}
