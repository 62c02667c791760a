package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"latexcv/internal/config"
)

const (
	defaultBinary      = "pdflatex"
	defaultTimeout     = 30 * time.Second
	defaultMaxParallel = 4
	scratchSuffix      = "_cv"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)

// LocalCompiler runs pdflatex against scratch files in WorkDir. Every attempt
// uses its own file stem, so concurrent compiles of one document never share files.
type LocalCompiler struct {
	Binary  string
	WorkDir string
	Timeout time.Duration

	slots  *semaphore.Weighted
	logger *slog.Logger
}

func NewLocalCompiler(cfg config.CompilerConfig, logger *slog.Logger) (*LocalCompiler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.Binary
	if binary == "" {
		binary = defaultBinary
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = defaultMaxParallel
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "latexcv")
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &LocalCompiler{
		Binary:  binary,
		WorkDir: workDir,
		Timeout: timeout,
		slots:   semaphore.NewWeighted(int64(parallel)),
		logger:  logger.With("compiler", "local"),
	}, nil
}

func (c *LocalCompiler) Name() string { return "local" }

// EnsureBinary reports ErrToolchainUnavailable when the compiler cannot be found on PATH.
func (c *LocalCompiler) EnsureBinary() (string, error) {
	path, err := exec.LookPath(c.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolchainUnavailable, c.Binary, err)
	}
	return path, nil
}

func (c *LocalCompiler) Compile(ctx context.Context, docID, latex string) ([]byte, error) {
	binary, err := c.EnsureBinary()
	if err != nil {
		return nil, err
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for compile slot: %w", err)
	}
	defer c.slots.Release(1)

	// a client disconnect must not abort a running compile
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Timeout)
	defer cancel()

	stem := scratchStem(docID)
	logger := c.logger.With("doc_id", docID, "attempt", stem)
	defer c.cleanup(stem, logger)

	texName := stem + ".tex"
	if err := os.WriteFile(filepath.Join(c.WorkDir, texName), []byte(latex), 0o600); err != nil {
		return nil, fmt.Errorf("write latex source: %w", err)
	}

	cmd := exec.CommandContext(runCtx, binary,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-file-line-error",
		"-output-directory="+c.WorkDir,
		texName,
	)
	cmd.Dir = c.WorkDir
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("latex compile timed out", "timeout", c.Timeout)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
	}
	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		logger.Info("latex compile failed", "exit_code", exitCode, "elapsed", elapsed)
		return nil, &FailedError{
			Reason:   "compiler exited with an error",
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitCode,
		}
	}

	pdf, err := os.ReadFile(filepath.Join(c.WorkDir, stem+".pdf"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &FailedError{Reason: "PDF was not generated", Stdout: stdout.String(), Stderr: stderr.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("read compiled pdf: %w", err)
	}
	if !isPDF(pdf) {
		return nil, &FailedError{Reason: "compiler produced an invalid PDF", Stdout: stdout.String(), Stderr: stderr.String()}
	}
	logger.Debug("latex compiled", "bytes", len(pdf), "elapsed", elapsed)
	return pdf, nil
}

// cleanup removes every file sharing the attempt's stem (.tex .pdf .aux .log .out).
func (c *LocalCompiler) cleanup(stem string, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(c.WorkDir, stem+".*"))
	if err != nil {
		logger.Warn("list scratch files failed", "error", err)
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("remove scratch file failed", "path", path, "error", err)
		}
	}
}

// scratchStem is <doc>_<unix nanos>_<random>_cv; only the doc prefix is caller-controlled.
func scratchStem(docID string) string {
	clean := unsafeName.ReplaceAllString(docID, "")
	if clean == "" {
		clean = "doc"
	}
	if len(clean) > 32 {
		clean = clean[:32]
	}
	return fmt.Sprintf("%s_%d_%s%s", clean, time.Now().UnixNano(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12], scratchSuffix)
}
