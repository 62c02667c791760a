// Package compile turns LaTeX source into PDF bytes, either with a local
// TeX installation or through a remote compilation endpoint.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"latexcv/internal/config"
)

// Compiler is implemented by every compilation strategy.
type Compiler interface {
	// Compile returns PDF bytes for latex. docID only labels scratch files and logs.
	Compile(ctx context.Context, docID, latex string) ([]byte, error)
	Name() string
}

var (
	ErrToolchainUnavailable = errors.New("latex compiler is not installed")
	ErrTimeout              = errors.New("latex compilation timed out")
)

// FailedError carries the compiler's captured output verbatim.
type FailedError struct {
	Reason   string
	Stdout   string
	Stderr   string
	ExitCode int
}

func (e *FailedError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("latex compilation failed: %s (exit code %d)", e.Reason, e.ExitCode)
	}
	return "latex compilation failed: " + e.Reason
}

// RemoteError reports a non-200 answer from the remote compiler.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("remote compiler returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote compiler returned status %d: %s", e.StatusCode, body)
}

// New builds the strategy selected by cfg.Strategy.
func New(cfg config.CompilerConfig, logger *slog.Logger) (Compiler, error) {
	switch cfg.Strategy {
	case "local", "":
		return NewLocalCompiler(cfg, logger)
	case "remote":
		return NewRemoteCompiler(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown compiler strategy: %s", cfg.Strategy)
	}
}

func isPDF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}
