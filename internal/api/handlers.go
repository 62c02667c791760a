package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"latexcv/internal/models"
)

const (
	defaultMaxUploadBytes = 5 << 20 // 5 MB
	multipartOverhead     = 1 << 20
	sniffLen              = 512
)

// Pipeline is the conversion workflow the handlers drive.
type Pipeline interface {
	Convert(ctx context.Context, pdf []byte, templateID string) (*models.ConversionRecord, error)
	Record(ctx context.Context, id string) (*models.ConversionRecord, error)
	CompilePDF(ctx context.Context, id string) (*models.ConversionRecord, []byte, error)
	CompilePDFRemote(ctx context.Context, id string) (*models.ConversionRecord, []byte, error)
}

// Options tunes the upload endpoint.
type Options struct {
	MaxUploadBytes   int64
	UploadsPerMinute int // per client address, zero means unlimited
}

// Handler wires HTTP routes to the conversion pipeline.
type Handler struct {
	pipeline         Pipeline
	maxUploadBytes   int64
	uploadsPerMinute int
	logger           *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(pipeline Pipeline, opts Options, logger *slog.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline:         pipeline,
		maxUploadBytes:   opts.MaxUploadBytes,
		uploadsPerMinute: opts.UploadsPerMinute,
		logger:           logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.home)
	router.POST("/upload", uploadLimiter(h.uploadsPerMinute), h.upload)
	download := router.Group("/download")
	download.GET("/latex/:doc_id", h.downloadLatex)
	download.GET("/pdf/:doc_id", h.downloadPDF)
	download.GET("/pdf-remote/:doc_id", h.downloadPDFRemote)
}

func (h *Handler) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to LaTeX CV Generator API"})
}

func (h *Handler) upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes+multipartOverhead {
		h.fileTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fileTooLarge(c)
			return
		}
		badRequest(c, "No file uploaded")
		return
	}
	if strings.TrimSpace(file.Filename) == "" {
		badRequest(c, "No file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		badRequest(c, "Only PDF files are allowed")
		return
	}
	if file.Size > h.maxUploadBytes {
		h.fileTooLarge(c)
		return
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("open upload: %w", err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	_ = f.Close()
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		h.fileTooLarge(c)
		return
	}
	sniff := data
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if contentType := http.DetectContentType(sniff); !strings.HasPrefix(contentType, "application/pdf") {
		badRequest(c, "Only PDF files are allowed")
		return
	}

	rec, err := h.pipeline.Convert(c.Request.Context(), data, c.PostForm("template"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       fmt.Sprintf("LaTeX CV generated using %s template", rec.TemplateID),
		"template_used": rec.TemplateID,
		"document_id":   rec.ID,
		"latex":         rec.GeneratedLaTeX,
	})
}

func (h *Handler) downloadLatex(c *gin.Context) {
	rec, err := h.pipeline.Record(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	attachment(c, rec.ID+"_cv.tex", "application/x-tex", []byte(rec.GeneratedLaTeX))
}

func (h *Handler) downloadPDF(c *gin.Context) {
	rec, pdf, err := h.pipeline.CompilePDF(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	attachment(c, rec.ID+"_cv.pdf", "application/pdf", pdf)
}

func (h *Handler) downloadPDFRemote(c *gin.Context) {
	rec, pdf, err := h.pipeline.CompilePDFRemote(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	attachment(c, rec.ID+"_cv.pdf", "application/pdf", pdf)
}

func (h *Handler) fileTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"status":  "error",
		"message": fmt.Sprintf("File too large, the limit is %d MB", h.maxUploadBytes>>20),
	})
}

func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
