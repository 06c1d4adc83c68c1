package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoText means the document was read but carried no extractable text.
var ErrNoText = errors.New("no text extracted from document")

// Config holds connection details for the PDF text-extraction service.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client uploads documents to the extraction service.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		logger:     logger.With().Str("component", "extractor").Logger(),
	}
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract sends the document as a multipart "file" field and returns its text.
func (c *Client) Extract(ctx context.Context, fileName string, doc io.Reader) (string, error) {
	if c.config.URL == "" {
		return "", fmt.Errorf("extraction endpoint not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, doc); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	var payload extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode extractor payload: %w", err)
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return "", ErrNoText
	}
	c.logger.Debug().Str("file", fileName).Int("chars", len(text)).Msg("text extracted")
	return text, nil
}
