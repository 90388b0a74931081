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

package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bcem/scribe/internal/sheet"
)

// defaultWorksheet is the sheet all range operations target. The
// transcription log lives on the first worksheet of the workbook.
const defaultWorksheet = "Sheet1"

// WorkbookClient talks to the Graph drive and workbook endpoints for the
// signed-in user's OneDrive. It implements sheet.Client.
type WorkbookClient struct {
	httpClient *http.Client
	baseURL    string
	worksheet  string
}

// NewWorkbookClient creates a Graph workbook client. baseURL defaults to
// the production Graph endpoint when empty.
func NewWorkbookClient(httpClient *http.Client, baseURL string) *WorkbookClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &WorkbookClient{httpClient: httpClient, baseURL: baseURL, worksheet: defaultWorksheet}
}

// FindFile searches the user's drive for a file by name. Returns
// ("", nil) when no exact-name match exists.
func (c *WorkbookClient) FindFile(ctx context.Context, name string) (string, error) {
	u := fmt.Sprintf("%s/me/drive/root/search(q='%s')", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search drive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", graphError("search drive", resp)
	}

	var page struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	// Search matches on substrings; require the exact name.
	for _, item := range page.Value {
		if item.Name == name {
			return item.ID, nil
		}
	}
	return "", nil
}

// UsedRowCount reports the row count of the worksheet's used range.
func (c *WorkbookClient) UsedRowCount(ctx context.Context, fileID string) (int, error) {
	u := fmt.Sprintf("%s/me/drive/items/%s/workbook/worksheets/%s/usedRange?$select=rowCount",
		c.baseURL, url.PathEscape(fileID), url.PathEscape(c.worksheet))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build used-range request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("read used range: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, graphError("read used range", resp)
	}

	var usedRange struct {
		RowCount int `json:"rowCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&usedRange); err != nil {
		return 0, fmt.Errorf("decode used range: %w", err)
	}

	return usedRange.RowCount, nil
}

// WriteRange writes a block of values into the addressed range.
func (c *WorkbookClient) WriteRange(ctx context.Context, fileID, address string, values [][]any) error {
	body, err := json.Marshal(map[string]any{"values": values})
	if err != nil {
		return fmt.Errorf("marshal range values: %w", err)
	}

	u := c.rangeURL(fileID, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build range write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("write range %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphError(fmt.Sprintf("write range %s", address), resp)
	}
	return nil
}

// SetRangeFormat applies cosmetic formatting to a range. Formatting is
// split across the Graph format, font and fill sub-resources; only the
// sub-requests implied by non-zero fields are issued.
func (c *WorkbookClient) SetRangeFormat(ctx context.Context, fileID, address string, format sheet.RangeFormat) error {
	base := map[string]any{}
	if format.NumberFormat != "" {
		base["numberFormat"] = format.NumberFormat
	}
	if format.WrapText {
		base["wrapText"] = true
	}
	if format.HorizontalAlignment != "" {
		base["horizontalAlignment"] = format.HorizontalAlignment
	}
	if format.VerticalAlignment != "" {
		base["verticalAlignment"] = format.VerticalAlignment
	}
	if len(base) > 0 {
		if err := c.patchFormat(ctx, fileID, address, "/format", base); err != nil {
			return err
		}
	}

	font := map[string]any{}
	if format.FontName != "" {
		font["name"] = format.FontName
	}
	if format.FontSize > 0 {
		font["size"] = format.FontSize
	}
	if format.Bold {
		font["bold"] = true
	}
	if format.FontColor != "" {
		font["color"] = format.FontColor
	}
	if len(font) > 0 {
		if err := c.patchFormat(ctx, fileID, address, "/format/font", font); err != nil {
			return err
		}
	}

	if format.FillColor != "" {
		fill := map[string]any{"color": format.FillColor}
		if err := c.patchFormat(ctx, fileID, address, "/format/fill", fill); err != nil {
			return err
		}
	}

	return nil
}

// patchFormat issues one PATCH against a range format sub-resource.
func (c *WorkbookClient) patchFormat(ctx context.Context, fileID, address, subresource string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal format payload: %w", err)
	}

	u := c.rangeURL(fileID, address) + subresource
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build format request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("format range %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphError(fmt.Sprintf("format range %s", address), resp)
	}
	return nil
}

// SetColumnWidth sets the width of a whole column, in points.
func (c *WorkbookClient) SetColumnWidth(ctx context.Context, fileID, column string, width int) error {
	body, err := json.Marshal(map[string]any{"columnWidth": width})
	if err != nil {
		return fmt.Errorf("marshal column width: %w", err)
	}

	address := fmt.Sprintf("%s:%s", column, column)
	u := c.rangeURL(fileID, address) + "/format"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build column width request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set column %s width: %w", column, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphError(fmt.Sprintf("set column %s width", column), resp)
	}
	return nil
}

// FileInfo fetches basic metadata for a drive item.
func (c *WorkbookClient) FileInfo(ctx context.Context, fileID string) (sheet.FileMetadata, error) {
	u := fmt.Sprintf("%s/me/drive/items/%s?$select=name,size", c.baseURL, url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return sheet.FileMetadata{}, fmt.Errorf("build item request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sheet.FileMetadata{}, fmt.Errorf("read item: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sheet.FileMetadata{}, graphError("read item", resp)
	}

	var item struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return sheet.FileMetadata{}, fmt.Errorf("decode item: %w", err)
	}

	return sheet.FileMetadata{Name: item.Name, Size: item.Size}, nil
}

// rangeURL builds the workbook range URL for an A1-style address.
func (c *WorkbookClient) rangeURL(fileID, address string) string {
	return fmt.Sprintf("%s/me/drive/items/%s/workbook/worksheets/%s/range(address='%s')",
		c.baseURL, url.PathEscape(fileID), url.PathEscape(c.worksheet), address)
}
