// Package extract calls the external image-to-text service that turns a
// photographed book page into structured page content.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
	"github.com/leafreadapp/leafread-server/internal/ratelimit"
)

const (
	// Burst lets a short run of page uploads through before the
	// per-minute budget applies.
	defaultBurst = 3

	defaultTimeout = 60 * time.Second
)

// Config holds the extraction service settings.
type Config struct {
	// Endpoint is the service base URL.
	Endpoint string
	// Model is the model segment of the generateContent path.
	Model string
	// Timeout bounds one extraction round-trip.
	Timeout time.Duration
	// RequestsPerMinute caps calls per API key.
	RequestsPerMinute int
}

// Request describes one page image to extract.
type Request struct {
	// APIKey is the user's key for the service. Never logged.
	APIKey string
	// ImageData is the raw image payload.
	ImageData []byte
	// MimeType describes the image payload, e.g. "image/jpeg".
	MimeType string
	// PreviousPage gives the service the page that precedes the new one,
	// so a sentence split across a page boundary can be stitched back.
	PreviousPage *PageContext
	// TargetLanguage asks the service to answer in the book's language.
	TargetLanguage string
}

// PageContext identifies an existing page whose content may be revised.
type PageContext struct {
	ID      string
	Content string
}

// PageUpdate is a revision of an existing page returned by the service.
type PageUpdate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Extraction is the structured result of analyzing one page image.
type Extraction struct {
	// Content is the extracted page text, paragraphs preserved.
	Content string `json:"content"`
	// ShortName is a few-word label for the page navigation sidebar.
	ShortName string `json:"shortName"`
	// PreviousPageUpdate revises the preceding page when the image
	// completes a sentence that started there.
	PreviousPageUpdate *PageUpdate `json:"previousPageUpdate,omitempty"`
}

// Client is a rate-limited extraction service client.
type Client struct {
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
	endpoint string
	model    string
}

// New creates an extraction client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		limiter:  ratelimit.New(float64(rpm)/60.0, defaultBurst),
		logger:   logger,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Wire types for the generateContent API.

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractPage sends the page image to the service and parses the structured
// result. Every failure mode (transport, HTTP status, unparseable body,
// schema-violating document) collapses into a single content-extraction
// error; the caller retries the upload, nothing else.
func (c *Client) ExtractPage(ctx context.Context, req Request) (*Extraction, error) {
	if req.APIKey == "" {
		return nil, apperrors.ExtractionFailed("no API key configured", nil)
	}

	// Outbound budget is per API key.
	if err := c.limiter.Wait(ctx, req.APIKey); err != nil {
		return nil, apperrors.ExtractionFailed("rate limit wait", err)
	}

	payload := generateRequest{
		Contents: []generateContent{{
			Parts: []generatePart{
				{Text: buildPrompt(req)},
				{InlineData: &inlineData{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(req.ImageData),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.ExtractionFailed("encode request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.ExtractionFailed("create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.logger != nil {
		c.logger.Debug("extraction request",
			"model", c.model,
			"mime_type", req.MimeType,
			"image_bytes", len(req.ImageData),
		)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.ExtractionFailed("execute request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExtractionFailed("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ExtractionFailed(fmt.Sprintf("service returned status %d", resp.StatusCode), nil)
	}

	return parseExtraction(respBody)
}

// parseExtraction unwraps the candidate text and decodes the structured
// document inside it.
func parseExtraction(body []byte) (*Extraction, error) {
	var wrapper generateResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, apperrors.ExtractionFailed("decode response envelope", err)
	}

	if len(wrapper.Candidates) == 0 || len(wrapper.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.ExtractionFailed("response contains no candidates", nil)
	}

	text := wrapper.Candidates[0].Content.Parts[0].Text

	var result Extraction
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, apperrors.ExtractionFailed("candidate is not a valid extraction document", err)
	}

	if result.Content == "" {
		return nil, apperrors.ExtractionFailed("extraction document has no content", nil)
	}
	if result.PreviousPageUpdate != nil && result.PreviousPageUpdate.ID == "" {
		return nil, apperrors.ExtractionFailed("previous page update names no page", nil)
	}

	return &result, nil
}

// buildPrompt assembles the instruction for the service.
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Extract and format the text from this image of a book page, preserving paragraphs and structure. ")
	b.WriteString(`Respond with a JSON object: {"content": string, "shortName": string`)
	if req.PreviousPage != nil {
		b.WriteString(`, "previousPageUpdate": {"id": string, "content": string}`)
	}
	b.WriteString("}. ")
	b.WriteString("shortName is a label of at most five words for this page.")

	if req.PreviousPage != nil {
		fmt.Fprintf(&b, " The previous page (id %q) ends with: %q.", req.PreviousPage.ID, tail(req.PreviousPage.Content, 500))
		b.WriteString(" If this image starts mid-sentence, include previousPageUpdate with the previous page's full corrected content; otherwise omit it.")
	}
	if req.TargetLanguage != "" {
		fmt.Fprintf(&b, " Keep the extracted text in its original language (%s).", req.TargetLanguage)
	}

	return b.String()
}

// tail returns at most n bytes from the end of s, on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[len(s)-n:]
	for i := 0; i < len(cut); i++ {
		if (cut[i] & 0xC0) != 0x80 {
			return cut[i:]
		}
	}
	return cut
}
