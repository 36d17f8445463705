package gpumarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"gpu-market/internal/gpumarket/handlers"
	"gpu-market/internal/gpumarket/middleware"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/metrics"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
	SessionCookie   handlers.SessionCookie
}

// Services groups everything the HTTP layer calls into.
type Services struct {
	Registration   handlers.RegistrationService
	Authorization  handlers.AuthorizationService
	Users          handlers.CurrentUserService
	Balance        handlers.BalanceGettingService
	Transactions   handlers.TransactionsGettingService
	Orders         handlers.OrdersGettingService
	Renting        handlers.OrderRentingService
	Offers         handlers.OffersGettingService
	Checkout       handlers.CheckoutService
	PaymentEvents  handlers.PaymentEventsService
	StripeVerifier handlers.EventVerifier
	CryptoVerifier handlers.EventVerifier
}

type Server struct {
	logger     *logging.ZapLogger
	httpServer *http.Server
	cfg        Config
}

func NewServer(
	cfg Config,
	tokenAuth *jwtauth.JWTAuth,
	services Services,
	logger *logging.ZapLogger,
) *Server {
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           createMux(cfg, tokenAuth, services, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: srv,
	}
}

func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server ListenAndServe failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func createMux(
	cfg Config,
	tokenAuth *jwtauth.JWTAuth,
	services Services,
	logger *logging.ZapLogger,
) *chi.Mux {
	registerHandler := handlers.NewRegisterHandler(services.Registration, cfg.SessionCookie, logger)
	authorizationHandler := handlers.NewAuthorizationHandler(services.Authorization, cfg.SessionCookie, logger)
	logoutHandler := handlers.NewLogoutHandler(cfg.SessionCookie)
	currentUserHandler := handlers.NewCurrentUserHandler(services.Users, logger)
	balanceHandler := handlers.NewBalanceGettingHandler(services.Balance, logger)
	transactionsHandler := handlers.NewTransactionsGettingHandler(services.Transactions, logger)
	ordersHandler := handlers.NewOrdersGettingHandler(services.Orders, logger)
	rentingHandler := handlers.NewOrderRentingHandler(services.Renting, services.Users, logger)
	offersHandler := handlers.NewOffersGettingHandler(services.Offers, logger)
	checkoutHandler := handlers.NewCheckoutSessionHandler(services.Checkout, services.Users, logger)
	topUpHandler := handlers.NewTopUpHandler(services.Checkout, services.Users, logger)
	cryptoCheckoutHandler := handlers.NewCryptoCheckoutHandler(services.Checkout, services.Users, logger)
	stripeWebhookHandler := handlers.NewStripeWebhookHandler(services.PaymentEvents, services.StripeVerifier, logger)
	coinbaseWebhookHandler := handlers.NewCoinbaseWebhookHandler(services.PaymentEvents, services.CryptoVerifier, logger)

	router := chi.NewRouter()
	router.Use(middleware.NewLoggerContext().CreateHandler)
	router.Use(middleware.NewPanicRecover(logger).CreateHandler)
	router.Use(middleware.NewMetrics().CreateHandler)

	router.Handle("/metrics", metrics.Handler())

	router.Route("/api", func(router chi.Router) {
		router.Get("/offers", offersHandler.ServeHTTP)

		router.Route("/auth", func(router chi.Router) {
			router.Post("/register", registerHandler.ServeHTTP)
			router.Post("/login", authorizationHandler.ServeHTTP)
			router.Post("/logout", logoutHandler.ServeHTTP)
		})

		router.Post("/webhooks/stripe", stripeWebhookHandler.ServeHTTP)
		router.Post("/offers/webhooks/stripe", stripeWebhookHandler.ServeHTTP)
		router.Post("/webhooks/coinbase", coinbaseWebhookHandler.ServeHTTP)

		router.Group(func(router chi.Router) {
			router.Use(middleware.Verifier(tokenAuth, handlers.SessionCookieName))
			router.Use(middleware.Authenticator)

			router.Get("/users/me", currentUserHandler.ServeHTTP)
			router.Get("/user/balance", balanceHandler.ServeHTTP)
			router.Get("/transactions", transactionsHandler.ServeHTTP)
			router.Get("/orders", ordersHandler.ServeHTTP)
			router.Post("/orders", rentingHandler.ServeHTTP)
			router.Post("/checkout_sessions", checkoutHandler.ServeHTTP)
			router.Post("/topup", topUpHandler.ServeHTTP)
			router.Post("/coinbase/checkout", cryptoCheckoutHandler.ServeHTTP)
		})
	})

	return router
}
