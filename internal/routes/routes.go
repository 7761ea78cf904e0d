// Package routes wires repositories, services and handlers together and
// registers the HTTP routes.
package routes

import (
	"waypool/internal/config"
	"waypool/internal/handlers"
	"waypool/internal/middleware"
	"waypool/internal/repositories"
	"waypool/internal/repositories/cache"
	"waypool/internal/services/expense"
	"waypool/internal/services/gateway"
	"waypool/internal/services/ledger"
	"waypool/internal/services/payment"
	"waypool/internal/services/tripwallet"
	"waypool/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
)

// Deps carries the process-level dependencies the route tree needs.
type Deps struct {
	Store   *repositories.Store
	Cache   *cache.Service
	Gateway gateway.Service
}

// SetupRoutes builds the service graph and registers all routes on app.
func SetupRoutes(app *fiber.App, deps Deps) {
	// Interface-typed nils here keep the services' no-cache path working when
	// Redis is disabled; a typed *cache.Service nil would defeat their checks.
	var (
		paymentCache    payment.Invalidator
		tripWalletCache tripwallet.Cache
		walletCache     wallet.Cache
	)
	if deps.Cache != nil {
		paymentCache = deps.Cache
		tripWalletCache = deps.Cache
		walletCache = deps.Cache
	}

	expenseService := expense.NewService(deps.Store)
	paymentService := payment.NewService(deps.Store, deps.Gateway, paymentCache)
	walletService := wallet.NewService(deps.Store, deps.Gateway, walletCache, &wallet.NoopMetricsCollector{})
	tripWalletService := tripwallet.NewService(deps.Store, tripWalletCache)
	ledgerService := ledger.NewService(deps.Store)

	expenseHandler := handlers.NewExpenseHandler(expenseService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	walletHandler := handlers.NewWalletHandler(walletService)
	tripWalletHandler := handlers.NewTripWalletHandler(tripWalletService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService)

	app.Get("/health", handlers.HealthCheck)

	authMiddleware := middleware.NewAuthMiddleware(config.GetEnv("JWT_SECRET", "waypool"))

	api := app.Group("/api", authMiddleware.Handler)

	trips := api.Group("/trips/:id")
	trips.Post("/expenses", expenseHandler.CreateExpense)
	trips.Get("/expenses", expenseHandler.GetExpenses)
	trips.Get("/wallet", tripWalletHandler.GetDetails)
	trips.Post("/wallet/withdraw", tripWalletHandler.InitiateWithdrawal)
	trips.Post("/wallet/vote", tripWalletHandler.Vote)
	trips.Post("/wallet/cancel", tripWalletHandler.CancelWithdrawal)
	trips.Post("/wallet/transfer", tripWalletHandler.TransferToAuthor)
	trips.Get("/transactions", transactionHandler.ListTripTransactions)
	trips.Get("/reconciliation", transactionHandler.ReconcileTrip)

	api.Post("/expenses/:id/pay", paymentHandler.PayShare)
	api.Post("/payments/:id/confirm", paymentHandler.ConfirmPayment)

	api.Get("/wallet", walletHandler.GetWallet)
	api.Post("/wallet/deposit", walletHandler.CreateDeposit)
	api.Post("/wallet/deposit/:id/confirm", walletHandler.ConfirmDeposit)

	api.Get("/transactions", transactionHandler.ListTransactions)
}
