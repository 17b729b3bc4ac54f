// Copyright 2025 Certen Protocol
//
// trustvmd wires the Enhanced VM Execution Layer (C1-C8) to the HAT
// Consensus Validator (C9-C12) and serves the JSON-RPC surface over
// HTTP. Grounded on main.go's env-config -> storage -> engines -> server
// startup sequence and graceful-shutdown signal handling.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/trustvm/pkg/apiserver"
	"github.com/certen/trustvm/pkg/auditstore"
	"github.com/certen/trustvm/pkg/bytecode"
	blscore "github.com/certen/trustvm/pkg/crypto/bls"
	"github.com/certen/trustvm/pkg/config"
	"github.com/certen/trustvm/pkg/crosschain"
	"github.com/certen/trustvm/pkg/dao"
	"github.com/certen/trustvm/pkg/evmengine"
	"github.com/certen/trustvm/pkg/fraud"
	"github.com/certen/trustvm/pkg/gas"
	"github.com/certen/trustvm/pkg/hatconsensus"
	"github.com/certen/trustvm/pkg/kv"
	"github.com/certen/trustvm/pkg/metrics"
	"github.com/certen/trustvm/pkg/p2p"
	"github.com/certen/trustvm/pkg/reputation"
	"github.com/certen/trustvm/pkg/signing"
	"github.com/certen/trustvm/pkg/state"
	"github.com/certen/trustvm/pkg/sybil"
	"github.com/certen/trustvm/pkg/trustgraph"
	"github.com/certen/trustvm/pkg/vmcoordinator"
	"github.com/certen/trustvm/pkg/wallet"
)

func main() {
	dev := flag.Bool("dev", false, "use relaxed development validation instead of production Validate()")
	dataDir := flag.String("data-dir", "", "override DATA_DIR")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("trustvmd: load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("trustvmd: %v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("trustvmd: %v", err)
	}

	logger := log.New(os.Stdout, "[trustvmd] ", log.LstdFlags)
	logger.Printf("starting trustvmd: network=%s validator=%s scheme=%s", cfg.NetworkName, cfg.ValidatorID, cfg.SigningScheme)

	dir := cfg.DataDir
	if dir == "" {
		dir = "./data"
	}
	store, err := kv.NewGoLevelStore("trustvm", dir)
	if err != nil {
		logger.Printf("falling back to in-memory KV store (no durable data dir): %v", err)
		store = kv.NewMemStore()
	}

	rep := reputation.New(store)
	trustGraph, err := trustgraph.New(store)
	if err != nil {
		log.Fatalf("trustvmd: trust graph: %v", err)
	}

	clusterer, err := wallet.New(store)
	if err != nil {
		log.Fatalf("trustvmd: wallet clusterer: %v", err)
	}
	sybilDetector := sybil.New()
	gasPolicy := gas.New()
	detector := bytecode.New()
	engine := evmengine.New(evmengine.DefaultConfig(), nil)
	coordinator := vmcoordinator.New(detector, gasPolicy, rep, engine, nil)

	world := state.New(store, state.BlockInfo{Number: 0, Timestamp: uint64(time.Now().Unix())})

	network := p2p.NewMemoryNetwork()
	validators := hatconsensus.NewValidatorRegistry(store)
	hat := hatconsensus.New(store, network, validators, sybilDetector, clusterer)

	fraudRegistry := fraud.New(store, rep)
	daoRegistry := dao.New(store, network, fraudRegistry)
	sybilMonitor := sybil.NewMonitor(store, rep)
	hat.SetArbitration(fraudRegistry, daoRegistry, sybilMonitor, rep)

	validatorSeed := make([]byte, 32)
	if _, err := rand.Read(validatorSeed); err != nil {
		log.Fatalf("trustvmd: generate validator key: %v", err)
	}
	validatorKey, err := signing.GenerateKeyPair(validatorSeed)
	if err != nil {
		log.Fatalf("trustvmd: generate validator key: %v", err)
	}
	selfAddr := signing.DeriveAddress(validatorKey.Public)
	if err := hatconsensus.RegisterAnnounce(store, hatconsensus.SignAnnounce(selfAddr, validatorKey)); err != nil {
		log.Fatalf("trustvmd: register validator announce: %v", err)
	}
	selfValidatorRep := func() float64 {
		stats, err := validators.Get(selfAddr)
		if err != nil {
			return hatconsensus.EligibleMinReputation
		}
		return stats.ValidatorReputation
	}
	responder := hatconsensus.NewResponder(hatconsensus.ResponderDeps{Reputation: rep, Trust: trustGraph}, selfAddr, validatorKey, selfValidatorRep, network)

	strategy, err := buildStrategy(cfg)
	if err != nil {
		log.Fatalf("trustvmd: signing strategy: %v", err)
	}

	crossChainHub := crosschain.New(rep, strategy, cfg.LocalChainID, parseCrossChainEndpoints(cfg.CrossChainEndpoints, logger))

	reg := metrics.New()

	var receipts *auditstore.ReceiptRepository
	if cfg.DatabaseURL != "" {
		client, err := auditstore.NewClient(cfg)
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatalf("trustvmd: audit store: %v", err)
			}
			logger.Printf("audit store unavailable, receipt/fraud/dispute history disabled: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := client.MigrateUp(ctx)
			cancel()
			if err != nil {
				log.Fatalf("trustvmd: audit store migrate: %v", err)
			}
			receipts = auditstore.NewReceiptRepository(client)
		}
	}

	srv := apiserver.New(world, coordinator, gasPolicy, rep, hat, crossChainHub, receipts)
	srv.SetPeerDispatch(daoRegistry, responder)

	mux := http.NewServeMux()
	srv.Routes(mux)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Printf("rpc listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("trustvmd: rpc server: %v", err)
		}
	}()
	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

// parseCrossChainEndpoints parses "name=url=chainID" triples; malformed
// entries are skipped with a warning rather than failing startup.
func parseCrossChainEndpoints(entries []string, logger *log.Logger) []crosschain.ChainInfo {
	var chains []crosschain.ChainInfo
	for _, entry := range entries {
		parts := strings.Split(entry, "=")
		if len(parts) != 3 {
			logger.Printf("skipping malformed CROSS_CHAIN_ENDPOINTS entry %q (want name=url=chainID)", entry)
			continue
		}
		var chainID uint64
		if _, err := fmt.Sscanf(parts[2], "%d", &chainID); err != nil {
			logger.Printf("skipping CROSS_CHAIN_ENDPOINTS entry %q: bad chain id: %v", entry, err)
			continue
		}
		chains = append(chains, crosschain.ChainInfo{Name: parts[0], RPCURL: parts[1], ChainID: chainID})
	}
	return chains
}

func buildStrategy(cfg *config.Config) (signing.Strategy, error) {
	switch cfg.SigningScheme {
	case "bls12-381":
		priv, _, err := blscore.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate bls key pair: %w", err)
		}
		return signing.NewBLSStrategy(priv)
	default:
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("read random seed: %w", err)
		}
		kp, err := signing.GenerateKeyPair(seed)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
		}
		return signing.NewEd25519Strategy(kp), nil
	}
}
