package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"latexcv/internal/compile"
	"latexcv/internal/extract"
	"latexcv/internal/service/ai"
	"latexcv/internal/service/conversion"
	"latexcv/internal/storage"
	"latexcv/internal/templates"
)

const toolchainSolution = "Install a LaTeX distribution that provides pdflatex (TeX Live, MacTeX or MiKTeX) or use /download/pdf-remote/<doc_id>"

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": message})
}

// writeError is the single place where pipeline failures become HTTP responses.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, body)
}

func describeError(err error) (int, gin.H) {
	var (
		unknown *templates.UnknownError
		failed  *compile.FailedError
		remote  *compile.RemoteError
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusBadRequest, errorBody("Invalid template: " + unknown.Name)
	case errors.Is(err, templates.ErrUnknownTemplate):
		return http.StatusBadRequest, errorBody("Invalid template")
	case errors.Is(err, extract.ErrNotPDF):
		return http.StatusBadRequest, errorBody("Only PDF files are allowed")
	case errors.Is(err, conversion.ErrNoText):
		return http.StatusBadRequest, errorBody("The uploaded PDF contains no extractable text")
	case errors.Is(err, storage.ErrInvalidID):
		return http.StatusBadRequest, errorBody("Invalid document id")
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, errorBody("Document not found")
	case errors.Is(err, extract.ErrExtraction):
		return http.StatusInternalServerError, withDetail(errorBody("Failed to extract text from PDF"), err)
	case errors.Is(err, ai.ErrGeneration):
		return http.StatusInternalServerError, withDetail(errorBody("LaTeX generation failed"), err)
	case errors.Is(err, compile.ErrToolchainUnavailable):
		body := errorBody("pdflatex is not installed or not in PATH")
		body["solution"] = toolchainSolution
		return http.StatusInternalServerError, body
	case errors.Is(err, compile.ErrTimeout):
		return http.StatusInternalServerError, withDetail(errorBody("LaTeX compilation timed out"), err)
	case errors.As(err, &failed):
		body := errorBody("LaTeX compilation failed: " + failed.Reason)
		body["latex_error"] = failed.Stderr
		body["latex_output"] = failed.Stdout
		if failed.ExitCode != 0 {
			body["exit_code"] = failed.ExitCode
		}
		return http.StatusInternalServerError, body
	case errors.As(err, &remote):
		body := errorBody("Failed to compile LaTeX via remote service")
		body["upstream_status"] = remote.StatusCode
		if detail := strings.TrimSpace(remote.Body); detail != "" {
			body["error"] = detail
		}
		return http.StatusInternalServerError, body
	case errors.Is(err, conversion.ErrRemoteDisabled):
		return http.StatusInternalServerError, withDetail(errorBody("Remote compilation is not available"), err)
	default:
		return http.StatusInternalServerError, withDetail(errorBody("Internal server error"), err)
	}
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}

func withDetail(body gin.H, err error) gin.H {
	body["error"] = err.Error()
	return body
}
