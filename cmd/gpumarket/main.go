package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/jwtauth/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gpu-market/cmd/gpumarket/config"
	"gpu-market/internal/gpumarket"
	"gpu-market/internal/gpumarket/catalogcache"
	"gpu-market/internal/gpumarket/data/database"
	"gpu-market/internal/gpumarket/data/dbrepository"
	"gpu-market/internal/gpumarket/notifier"
	"gpu-market/internal/gpumarket/ordersync"
	"gpu-market/internal/gpumarket/partner"
	"gpu-market/internal/gpumarket/payments"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/jwtfactory"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/pgxstorage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gpumarket",
		Short:        "GPU rental marketplace backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the order status sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := database.RunMigrations(cfg.DB.ConnectionString); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	return rootCmd
}

func serve(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.NewZapLogger(
		cfg.LogLevel,
		logging.WithService("gpu-market"),
		logging.WithEncoding(cfg.LogFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rootCtx, cancelCtx := signal.NotifyContext(
		cmd.Context(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelCtx()

	dbFactory := database.NewPgxDatabaseFactory(cfg.DB)
	storage, err := pgxstorage.New(rootCtx, dbFactory)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()
	repository := dbrepository.New(storage, logger)
	transactionManager := pgxstorage.NewTransactionsManager(storage)

	tokenAuth := jwtauth.New(cfg.JWTConfig.Algorithm, []byte(cfg.JWTConfig.Secret), nil)
	tokenFactory := jwtfactory.New(tokenAuth, cfg.JWTConfig.ExpirationTime)

	partnerClient := partner.NewClient(cfg.Partner, logger)

	var offerCache service.OfferCache
	if cfg.RedisURL != "" {
		redisCache, err := catalogcache.New(rootCtx, cfg.RedisURL, catalogcache.DefaultTTL)
		if err != nil {
			return fmt.Errorf("failed to connect offer cache: %w", err)
		}
		defer func() { _ = redisCache.Close() }()
		offerCache = redisCache
	}

	var orderNotifier service.Notifier = notifier.NewLogNotifier(logger)
	if cfg.SMTP.Configured() {
		orderNotifier = notifier.NewEmailNotifier(cfg.SMTP)
	} else {
		logger.WarnCtx(rootCtx, "SMTP is not configured, order confirmations are only logged")
	}

	authorizationService := service.NewAuthorization(repository, tokenFactory)
	walletService := service.NewWallet(transactionManager, repository, logger)
	catalogService := service.NewCatalog(partnerClient, offerCache, logger)
	checkoutService := service.NewCheckout(
		service.CheckoutConfig{PublicBaseURL: cfg.PublicBaseURL},
		payments.NewStripeGateway(cfg.Stripe),
		payments.NewCoinbaseClient(cfg.Coinbase),
		catalogService,
		logger,
	)
	fulfillmentService := service.NewFulfillment(partnerClient, repository, orderNotifier, logger)
	paymentEventsService := service.NewPaymentEvents(transactionManager, repository, walletService, fulfillmentService, logger)
	ordersService := service.NewOrders(transactionManager, repository, catalogService, walletService, fulfillmentService, logger)

	server := gpumarket.NewServer(cfg.Server, tokenAuth, gpumarket.Services{
		Registration:   authorizationService,
		Authorization:  authorizationService,
		Users:          authorizationService,
		Balance:        walletService,
		Transactions:   walletService,
		Orders:         ordersService,
		Renting:        ordersService,
		Offers:         catalogService,
		Checkout:       checkoutService,
		PaymentEvents:  paymentEventsService,
		StripeVerifier: payments.NewStripeVerifier(cfg.Stripe),
		CryptoVerifier: payments.NewCoinbaseVerifier(cfg.Coinbase),
	}, logger)

	orderSync := ordersync.New(cfg.OrderSync, repository, partnerClient, logger)

	if err := run(rootCtx, cfg, server, orderSync, logger); err != nil {
		logger.ErrorCtx(rootCtx, "Server shutdown with error", zap.Error(err))
		return err
	}
	logger.InfoCtx(rootCtx, "Server shutdown gracefully")
	return nil
}

func run(
	rootCtx context.Context,
	cfg *config.Config,
	server *gpumarket.Server,
	orderSync *ordersync.OrderSync,
	logger *logging.ZapLogger,
) error {
	g, ctx := errgroup.WithContext(rootCtx)

	context.AfterFunc(ctx, func() {
		ctx, cancelCtx := context.WithTimeout(context.Background(), 2*cfg.Server.ShutdownTimeout)
		defer cancelCtx()

		<-ctx.Done()
		log.Fatal("failed to gracefully shutdown the server")
	})

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		orderSync.Run(ctx)
		return nil
	})

	g.Go(func() error {
		defer logger.InfoCtx(ctx, "Shutting down server")
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("goroutine error occurred: %w", err)
	}

	return nil
}
