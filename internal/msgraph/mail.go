// Copyright (c) 2026 John Earle
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://github.com/yourusername/bcem/blob/main/LICENSE
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package msgraph implements the Microsoft Graph REST clients for the
// signed-in user's mailbox and OneDrive workbook. The http.Client is
// expected to carry authentication (oauth2 transport).
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bcem/scribe/internal/models"
)

// DefaultBaseURL is the Graph API v1.0 root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// MailClient talks to the Graph mail endpoints for the signed-in user.
type MailClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewMailClient creates a Graph mail client. baseURL defaults to the
// production Graph endpoint when empty.
func NewMailClient(httpClient *http.Client, baseURL string) *MailClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MailClient{httpClient: httpClient, baseURL: baseURL}
}

// graphMessage represents the relevant fields of a Graph message.
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"sender"`
	ReceivedDateTime string `json:"receivedDateTime"`
}

// ListMessagesWithAttachments lists inbox messages flagged as having
// attachments, newest first.
func (c *MailClient) ListMessagesWithAttachments(ctx context.Context, limit int) ([]models.MailMessage, error) {
	params := url.Values{}
	params.Set("$filter", "hasAttachments eq true")
	params.Set("$select", "id,subject,sender,receivedDateTime")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", strconv.Itoa(limit))

	u := fmt.Sprintf("%s/me/mailFolders/inbox/messages?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, graphError("list messages", resp)
	}

	var page struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}

	messages := make([]models.MailMessage, 0, len(page.Value))
	for _, m := range page.Value {
		received, err := time.Parse(time.RFC3339, m.ReceivedDateTime)
		if err != nil {
			slog.Warn("message skipped: unparseable receivedDateTime",
				"message_id", m.ID,
				"received", m.ReceivedDateTime,
			)
			continue
		}
		messages = append(messages, models.MailMessage{
			ID:         m.ID,
			Subject:    m.Subject,
			Sender:     m.Sender.EmailAddress.Address,
			ReceivedAt: received,
		})
	}

	return messages, nil
}

// ListAttachments returns attachment metadata for a message, without
// content.
func (c *MailClient) ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentInfo, error) {
	params := url.Values{}
	params.Set("$select", "id,name,contentType,size")

	u := fmt.Sprintf("%s/me/messages/%s/attachments?%s", c.baseURL, url.PathEscape(messageID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build attachments request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, graphError("list attachments", resp)
	}

	var page struct {
		Value []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			ContentType string `json:"contentType"`
			Size        int64  `json:"size"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode attachments response: %w", err)
	}

	infos := make([]models.AttachmentInfo, 0, len(page.Value))
	for _, a := range page.Value {
		infos = append(infos, models.AttachmentInfo{
			ID:          a.ID,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	return infos, nil
}

// DownloadAttachment fetches the raw bytes of one attachment.
func (c *MailClient) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	u := fmt.Sprintf("%s/me/messages/%s/attachments/%s/$value",
		c.baseURL, url.PathEscape(messageID), url.PathEscape(attachmentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, graphError("download attachment", resp)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment content: %w", err)
	}

	return content, nil
}

// MarkRead sets the read flag on a message.
func (c *MailClient) MarkRead(ctx context.Context, messageID string) error {
	body, _ := json.Marshal(map[string]bool{"isRead": true})

	u := fmt.Sprintf("%s/me/messages/%s", c.baseURL, url.PathEscape(messageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mark-read request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphError("mark read", resp)
	}
	return nil
}

// FindFolder resolves a mail folder by exact display name, filtered
// server-side so the lookup is not at the mercy of folder paging.
// Returns ("", nil) when no folder matches.
func (c *MailClient) FindFolder(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	// OData string literals escape single quotes by doubling them.
	params.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(name, "'", "''")))

	u := fmt.Sprintf("%s/me/mailFolders?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build folders request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", graphError("list folders", resp)
	}

	var page struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", fmt.Errorf("decode folders response: %w", err)
	}

	if len(page.Value) == 0 {
		return "", nil
	}
	return page.Value[0].ID, nil
}

// CreateFolder creates a mail folder with the given display name.
func (c *MailClient) CreateFolder(ctx context.Context, name string) (string, error) {
	body, _ := json.Marshal(map[string]string{"displayName": name})

	u := fmt.Sprintf("%s/me/mailFolders", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build create-folder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", graphError("create folder", resp)
	}

	var folder struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&folder); err != nil {
		return "", fmt.Errorf("decode folder response: %w", err)
	}

	slog.Info("mail folder created", "name", name, "folder_id", folder.ID)
	return folder.ID, nil
}

// MoveMessage moves a message into the given folder.
func (c *MailClient) MoveMessage(ctx context.Context, messageID, folderID string) error {
	body, _ := json.Marshal(map[string]string{"destinationId": folderID})

	u := fmt.Sprintf("%s/me/messages/%s/move", c.baseURL, url.PathEscape(messageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build move request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("move message: %w", err)
	}
	defer resp.Body.Close()

	// Graph returns 201 with the moved message copy.
	if resp.StatusCode != http.StatusCreated {
		return graphError("move message", resp)
	}
	return nil
}

// graphError builds an error from a non-2xx Graph response, keeping a
// bounded body snippet for diagnostics.
func graphError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: graph API returned HTTP %d: %s", op, resp.StatusCode, string(body))
}
