package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veridian/hvs/pkg/hostconn"
	"github.com/veridian/hvs/pkg/report"
	"github.com/veridian/hvs/pkg/trust"
	"github.com/veridian/hvs/pkg/verifier"
	"github.com/veridian/hvs/pkg/worker"
)

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerRunCmd)
	workerCmd.AddCommand(workerKeygenCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the verification worker",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the verification worker pool until interrupted",
	Long: `Run the verification worker pool. Workers poll the queue, connect to
host agents, evaluate trust, and persist signed reports. Stops cleanly
on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, cleanup, err := buildPool()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("worker pool starting",
			"workers", cfg.Workers, "poll_interval", cfg.PollInterval, "db", cfg.DatabasePath)
		pool.Run(ctx)
		slog.Info("worker pool stopped")
		return nil
	},
}

var workerKeygenCmd = &cobra.Command{
	Use:   "keygen <key-file>",
	Short: "Generate a report signing key",
	Long: `Generate an ed25519 report signing key and write it to the given file
in PKCS#8 PEM form. Point HVS_SIGNER_KEY or signer_key_path at the file
so reports stay verifiable across worker restarts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to encode key: %w", err)
		}
		block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
		if err := os.WriteFile(args[0], pem.EncodeToMemory(block), 0o600); err != nil {
			return fmt.Errorf("failed to write key file: %w", err)
		}
		fmt.Printf("Wrote signing key to %s\n", args[0])
		return nil
	},
}

// buildPool assembles the verification pipeline from the active
// configuration: connector, trust engine, report signer, audit backends,
// and the worker pool on top. The cleanup closes the audit backends.
func buildPool() (*worker.Pool, func(), error) {
	key, err := loadSignerKey(cfg.SignerKeyPath)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()
	connector := &hostconn.HTTPConnector{Timeout: cfg.ConnectTimeout}
	signer := report.NewJWSSigner(key, cfg.SignerIssuer, cfg.ReportValidity)
	assembler := report.NewAssembler(signer, logger)
	orch := trust.NewOrchestrator(hvsStore, hvsStore, verifier.New(), logger)
	engine := trust.NewEngine(hvsStore, hvsStore, orch, logger)
	recorder, closeAudit := auditRecorder()

	w := worker.New(hvsStore, connector, engine, assembler, recorder, worker.NewKeyedMutex(), logger)
	return worker.NewPool(hvsStore, w, cfg.Workers, cfg.PollInterval, logger), closeAudit, nil
}

// loadSignerKey reads a PKCS#8 PEM ed25519 key. An empty path yields an
// ephemeral key with a warning, since reports signed with it cannot be
// verified after the process exits.
func loadSignerKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		slog.Warn("no signing key configured, using an ephemeral key")
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		return key, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signing key %s is not PEM encoded", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key %s is not an ed25519 key", path)
	}
	return key, nil
}
