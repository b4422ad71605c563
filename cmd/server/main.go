/*
main.go - Application entry point

PURPOSE:
  Starts the sale engine: restores the customer ledger from its snapshot,
  runs the chat messaging loop against the Telegram transport, and serves
  the operator HTTP surface over the same ledger.

STARTUP SEQUENCE:
  1. Load environment configuration, parse flags
  2. Open the snapshot store (JSON file or SQLite, by extension)
  3. Restore the ledger (empty on missing/corrupt snapshot, with a warning)
  4. Wire machine, bridge, messaging loop, operator router
  5. Run loop + HTTP server until SIGINT/SIGTERM, then drain

COMMAND-LINE FLAGS:
  -port    Operator HTTP port (overrides ADMIN_PORT)
  -db      Snapshot path (overrides STORAGE_FILE). A .db/.sqlite/.sqlite3
           extension or ":memory:" selects the SQLite store; anything else
           is the JSON file store.

ENVIRONMENT:
  API_TOKEN, FILE_PATH, SBERBANK_ACCOUNT, YMONEY_ACCOUNT, PAYEER_ACCOUNT,
  CRYPTO_ACCOUNT, PRICE, SUPPORT_USERNAME, STORAGE_FILE, ADMIN_PORT

SEE ALSO:
  - api/server.go: Operator router
  - chat/loop.go: Messaging loop
  - store/file, store/sqlite: Snapshot stores
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vendbot/sale-engine/api"
	"github.com/vendbot/sale-engine/bridge"
	"github.com/vendbot/sale-engine/chat"
	"github.com/vendbot/sale-engine/chat/telegram"
	"github.com/vendbot/sale-engine/config"
	"github.com/vendbot/sale-engine/sale"
	"github.com/vendbot/sale-engine/store/file"
	"github.com/vendbot/sale-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	port := flag.Int("port", cfg.AdminPort, "operator HTTP port")
	dbPath := flag.String("db", cfg.SnapshotPath, "snapshot path (JSON file, or .db/.sqlite for SQLite)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	store, err := openStore(*dbPath)
	if err != nil {
		logger.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer store.Close()

	ledger := sale.NewLedger(store)
	if err := ledger.Load(context.Background()); err != nil {
		logger.Printf("WARNING: starting with an empty ledger: %v", err)
	}

	catalog := &sale.Catalog{
		Price:           cfg.Price,
		SberbankAccount: cfg.SberbankAccount,
		YMoneyAccount:   cfg.YMoneyAccount,
		PayeerAccount:   cfg.PayeerAccount,
		CryptoAccount:   cfg.CryptoAccount,
		SupportHandle:   cfg.SupportHandle,
	}
	machine := sale.NewMachine(ledger, catalog)

	br := bridge.New(64)
	transport := telegram.New(cfg.BotToken)
	loop := chat.NewLoop(transport, machine, ledger, br, cfg.FilePath, logger)

	handler := api.NewHandler(ledger, machine, loop, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	go func() {
		logger.Printf("Operator surface on http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Messaging loop exited: %v", err)
	}
	logger.Println("Stopped")
}

// openStore picks the snapshot backend by path convention.
func openStore(path string) (sale.Store, error) {
	lower := strings.ToLower(path)
	if path == ":memory:" ||
		strings.HasSuffix(lower, ".db") ||
		strings.HasSuffix(lower, ".sqlite") ||
		strings.HasSuffix(lower, ".sqlite3") {
		return sqlite.New(path)
	}
	return file.New(path), nil
}
