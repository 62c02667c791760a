package compile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"latexcv/internal/config"
)

const (
	defaultRemoteURL     = "https://latexonline.cc/data"
	defaultRemoteTimeout = time.Minute
	maxRemoteErrorBody   = 2048
	maxRemotePDFBytes    = 32 << 20
)

// RemoteCompiler posts the source to a latexonline-compatible endpoint.
type RemoteCompiler struct {
	Endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewRemoteCompiler(cfg config.CompilerConfig, logger *slog.Logger) *RemoteCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := cfg.RemoteURL
	if endpoint == "" {
		endpoint = defaultRemoteURL
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteCompiler{
		Endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("compiler", "remote"),
	}
}

func (c *RemoteCompiler) Name() string { return "remote" }

func (c *RemoteCompiler) Compile(ctx context.Context, docID, latex string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "cv.tex")
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.WriteString(part, latex); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	for _, field := range [][2]string{{"compiler", "pdflatex"}, {"output", "pdf"}} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, c.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote compile: %w", err)
	}
	defer resp.Body.Close()

	logger := c.logger.With("doc_id", docID, "status", resp.StatusCode, "elapsed", time.Since(start))
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxRemoteErrorBody))
		logger.Warn("remote compile rejected")
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxRemotePDFBytes))
	if err != nil {
		return nil, fmt.Errorf("read remote pdf: %w", err)
	}
	logger.Debug("remote compile finished", "bytes", len(pdf))
	return pdf, nil
}
