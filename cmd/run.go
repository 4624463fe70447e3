package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"bankroll/api"
	"bankroll/chain"
	"bankroll/chainwatch"
	"bankroll/config"
	"bankroll/database"
	"bankroll/events"
	"bankroll/repository"
	"bankroll/service"

	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/decred/dcrd/rpcclient/v8"
	logrus "github.com/sirupsen/logrus"
)

// Run initializes and starts the ledger daemon
func Run(ctx context.Context) error {
	log.Println("Starting bankroll ledger...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	subscribeOperationalAlerts(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize chain access. Without a dcrd connection the ledger still
	// serves balances and wagers, but deposits and withdrawals stay parked.
	transfers := chain.NewDisabledSender()
	var chainClient *rpcclient.Client
	if cfg.DcrdHost != "" {
		log.Println("Connecting to dcrd...")
		connCfg := &rpcclient.ConnConfig{
			Host:         cfg.DcrdHost,
			User:         cfg.DcrdUser,
			Pass:         cfg.DcrdPass,
			DisableTLS:   cfg.DcrdDisableTLS,
			HTTPPostMode: true,
		}
		chainClient, err = rpcclient.New(connCfg, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to dcrd: %w", err)
		}
		transfers = chain.NewWalletSender(chainClient, chaincfg.MainNetParams())
	} else {
		log.Println("DCRD_HOST not set, running without chain access")
	}

	// Initialize services
	outcomes := service.NewCryptoOutcomeSource()
	accountService := service.NewAccountService(uowFactory)
	wagerService := service.NewWagerService(uowFactory, outcomes)
	jackpotService := service.NewJackpotService(uowFactory, outcomes)
	depositService := service.NewDepositService(uowFactory)
	withdrawalService := service.NewWithdrawalService(uowFactory, transfers)
	log.Println("Services initialized successfully")

	// Start the deposit watcher
	if chainClient != nil {
		watcher := chainwatch.New(chainClient, depositService, cfg.PoolAddress,
			cfg.WatchConfirmations, cfg.WatchInterval)
		go watcher.Run(ctx)
	}

	// Start the HTTP API
	server := api.NewServer(accountService, wagerService, jackpotService, withdrawalService)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx, cfg.ListenAddr)
	}()

	// Wait for shutdown or a server failure
	log.Printf("Ledger is running in %s mode...", cfg.Environment)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	// Cleanup resources
	log.Println("Shutting down ledger...")

	if chainClient != nil {
		chainClient.Shutdown()
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close database connection
	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}

// subscribeOperationalAlerts logs the events an operator needs to act on:
// funds sitting uncredited, payouts the pool could not cover, and
// withdrawals stuck between debit and dispatch.
func subscribeOperationalAlerts(bus *events.Bus) {
	bus.Subscribe(events.EventTypeDepositUnmatched, func(ctx context.Context, event events.Event) {
		e := event.(events.DepositUnmatchedEvent)
		logrus.WithFields(logrus.Fields{
			"fromAddress": e.FromAddress,
			"amount":      e.Amount,
			"txHash":      e.TxHash,
		}).Warn("ALERT: unmatched deposit, funds held in pool wallet")
	})

	bus.Subscribe(events.EventTypePoolShortfall, func(ctx context.Context, event events.Event) {
		e := event.(events.PoolShortfallEvent)
		logrus.WithFields(logrus.Fields{
			"userID":    e.UserID,
			"requested": e.Requested,
			"paid":      e.Paid,
		}).Warn("ALERT: pool could not cover payout")
	})

	bus.Subscribe(events.EventTypeWithdrawalDispatchFailed, func(ctx context.Context, event events.Event) {
		e := event.(events.WithdrawalDispatchFailedEvent)
		logrus.WithFields(logrus.Fields{
			"userID":       e.UserID,
			"withdrawalID": e.WithdrawalID,
			"reason":       e.Reason,
		}).Error("ALERT: withdrawal dispatch failed, reconcile manually")
	})

	bus.Subscribe(events.EventTypeJackpotWon, func(ctx context.Context, event events.Event) {
		e := event.(events.JackpotWonEvent)
		logrus.WithFields(logrus.Fields{
			"userID": e.UserID,
			"payout": e.Payout,
		}).Info("Jackpot paid out")
	})
}
