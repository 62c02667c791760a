package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"latexcv/internal/compile"
	"latexcv/internal/config"
	"latexcv/internal/redis"
	"latexcv/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the store, cache, LaTeX toolchain and generation settings",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type check struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (string, error)
}

var doctorChecks = []check{
	{"store", checkStore},
	{"cache", checkCache},
	{"latex", checkLatex},
	{"generation", checkGeneration},
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if failed := runChecks(cmd.Context(), cfg, doctorChecks, cmd.OutOrStdout()); failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func runChecks(ctx context.Context, cfg *config.Config, checks []check, w io.Writer) int {
	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx, cfg)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-10s %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(w, "ok    %-10s %s\n", c.name, detail)
	}
	return failed
}

func checkStore(ctx context.Context, cfg *config.Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg.Store, nil)
	if err != nil {
		return "", err
	}
	defer store.Close(context.Background())
	if err := store.Ping(ctx); err != nil {
		return "", err
	}
	return cfg.Store.Driver + " reachable", nil
}

func checkCache(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Cache.Addr == "" {
		return "disabled", nil
	}
	client, err := redis.NewClient(ctx, cfg.Cache)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return "redis reachable at " + cfg.Cache.Addr, nil
}

func checkLatex(_ context.Context, cfg *config.Config) (string, error) {
	if cfg.Compiler.Strategy == "remote" {
		return "remote strategy via " + cfg.Compiler.RemoteURL, nil
	}
	lc, err := compile.NewLocalCompiler(cfg.Compiler, nil)
	if err != nil {
		return "", err
	}
	path, err := lc.EnsureBinary()
	if err != nil {
		return "", err
	}
	return path, nil
}

func checkGeneration(_ context.Context, cfg *config.Config) (string, error) {
	if cfg.AI.APIKey == "" {
		return "", fmt.Errorf("no API key for provider %s", cfg.AI.Provider)
	}
	return fmt.Sprintf("%s/%s key configured", cfg.AI.Provider, cfg.AI.Model), nil
}
