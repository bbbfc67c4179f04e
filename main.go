// Post Fiat Task Coordination Engine
//
// Observes the XRP Ledger for memo-bearing payments, interprets them as
// messages in the multi-stage task-lifecycle protocol, and generates
// on-chain replies: task proposals, verification prompts, rewards,
// initiation rewards, and handshake responses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/postfiat/taskengine/pkg/config"
	"github.com/postfiat/taskengine/pkg/credentials"
	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/handshake"
	"github.com/postfiat/taskengine/pkg/llm"
	"github.com/postfiat/taskengine/pkg/memohistory"
	"github.com/postfiat/taskengine/pkg/metrics"
	"github.com/postfiat/taskengine/pkg/monitor"
	"github.com/postfiat/taskengine/pkg/nodeconfig"
	"github.com/postfiat/taskengine/pkg/queue"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

const shutdownTimeout = 60 * time.Second

func main() {
	var password string
	flag.StringVar(&password, "password", os.Getenv("PFT_PASSWORD"), "credential store password")
	flag.Parse()

	logger := log.New(os.Stdout, "[Engine] ", log.LstdFlags)

	if err := run(password, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(password string, logger *log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Credentials come first: the database URL and LLM key live there.
	creds, err := credentials.Open(cfg.CredentialsDir, password)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer creds.Close()

	if cfg.DatabaseURL == "" {
		if url, err := creds.Get(credentials.DatabaseURLKey(cfg.NodeName)); err == nil {
			cfg.DatabaseURL = url
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	node, err := nodeconfig.Load(nodeconfig.Path(cfg.CredentialsDir, cfg.UseTestnet))
	if err != nil {
		return err
	}

	wallets, err := loadWallets(creds, cfg, node)
	if err != nil {
		return err
	}

	llmKey, err := creds.Get(credentials.LLMAPIKeyKey)
	if err != nil {
		return fmt.Errorf("failed to read LLM API key: %w", err)
	}

	db, err := database.NewClient(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.MigrateUp(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	repos := database.NewRepositories(db)

	m := metrics.New()

	rpcClient, err := xrpl.NewClient(cfg.RPCEndpoints)
	if err != nil {
		return err
	}

	// The history builder and handshake registry are mutually layered:
	// the builder decrypts using secrets the registry resolves, and the
	// registry reads handshakes out of the builder's histories.
	var registry *handshake.Registry
	nodeWallet := wallets[node.NodeAddress]
	history := memohistory.NewBuilder(repos.Transactions,
		memohistory.WithSecretResolver(func(counterparty string) []byte {
			if registry == nil {
				return nil
			}
			secret, err := registry.SharedSecret(ctx, node.NodeAddress, nodeWallet.Entropy, counterparty)
			if err != nil {
				return nil
			}
			return secret
		}))
	registry = handshake.NewRegistry(history)

	registry.RegisterAutoAddress(node.NodeAddress)
	if node.HasRemembrancer() {
		registry.RegisterAutoAddress(*node.RemembrancerAddress)
	}
	for _, addr := range node.AutoHandshakeAddresses {
		registry.RegisterAutoAddress(addr)
	}

	gateway := llm.NewGateway(cfg, llmKey)
	sender := submitter.NewSubmitter(rpcClient, cfg.PFTIssuer)

	orchestrator, err := queue.NewOrchestrator(cfg, node, history, repos.Processing,
		registry, gateway, sender, wallets, queue.WithMetrics(m))
	if err != nil {
		return err
	}

	subscriber, err := xrpl.NewSubscriber(cfg.WSEndpoints, nil)
	if err != nil {
		return err
	}

	tracked := []string{node.NodeAddress}
	if node.HasRemembrancer() {
		tracked = append(tracked, *node.RemembrancerAddress)
	}
	ledgerMonitor := monitor.NewMonitor(subscriber, rpcClient, repos.Transactions,
		cfg.PFTIssuer, tracked, monitor.WithMetrics(m))

	backfiller := monitor.NewBackfiller(ledgerMonitor, cfg.PFTTrackThreshold, nil)
	backfiller.DeltaEnabled = cfg.HasLocalNode

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ledgerMonitor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("ledger monitor exited: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := backfiller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("backfiller exited: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("queue worker exited: %v", err)
		}
	}()

	serveHTTP(cfg, db, m, logger)

	logger.Printf("engine started (node=%s, network=%s)", node.NodeAddress, network(cfg))

	// Block until a shutdown signal, then drain with a timeout.
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigC
	logger.Printf("received %s, shutting down", sig)

	orchestrator.Stop()
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Printf("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Printf("shutdown timed out after %s", shutdownTimeout)
	}
	return nil
}

// loadWallets decrypts every node-owned wallet seed from the credential
// store. Private keys stay in process memory from here on.
func loadWallets(creds *credentials.Store, cfg *config.Config, node *nodeconfig.NodeConfig) (map[string]*xrpl.Wallet, error) {
	wallets := make(map[string]*xrpl.Wallet)

	seed, err := creds.Get(credentials.WalletSecretKey(cfg.NodeName))
	if err != nil {
		return nil, fmt.Errorf("failed to read node wallet seed: %w", err)
	}
	wallet, err := xrpl.NewWalletFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive node wallet: %w", err)
	}
	if wallet.Address != node.NodeAddress {
		return nil, fmt.Errorf("node wallet derives %s but config names %s", wallet.Address, node.NodeAddress)
	}
	wallets[wallet.Address] = wallet

	if node.HasRemembrancer() {
		seed, err := creds.Get(credentials.RemembrancerSecretKey(cfg.NodeName))
		if err != nil {
			return nil, fmt.Errorf("failed to read remembrancer wallet seed: %w", err)
		}
		wallet, err := xrpl.NewWalletFromSeed(seed)
		if err != nil {
			return nil, fmt.Errorf("failed to derive remembrancer wallet: %w", err)
		}
		wallets[wallet.Address] = wallet
	}
	return wallets, nil
}

// serveHTTP starts the health and metrics listeners.
func serveHTTP(cfg *config.Config, db *database.Client, m *metrics.Metrics, logger *log.Logger) {
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "connected"}
		code := http.StatusOK
		if _, err := db.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "disconnected"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})
	go func() {
		if err := http.ListenAndServe(cfg.HealthAddr, healthMux); err != nil {
			logger.Printf("health listener exited: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			logger.Printf("metrics listener exited: %v", err)
		}
	}()
}

func network(cfg *config.Config) string {
	if cfg.UseTestnet {
		return "testnet"
	}
	return "mainnet"
}
