package handlers

import (
	"strconv"

	"waypool/internal/services/ledger"
	"waypool/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	ledgerService ledger.Service
}

func NewTransactionHandler(ledgerService ledger.Service) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService}
}

func pageFromQuery(c *fiber.Ctx) ledger.Page {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	return ledger.Page{Limit: limit, Offset: offset}
}

// ListTransactions returns the caller's own transaction history.
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	txs, err := h.ledgerService.ListByUser(c.Context(), claims.UserID, pageFromQuery(c))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"transactions": txs})
}

// ListTripTransactions returns one trip's ledger, members only.
func (h *TransactionHandler) ListTripTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	tripID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid trip id")
	}

	txs, err := h.ledgerService.ListByTrip(c.Context(), tripID, claims.UserID, pageFromQuery(c))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"transactions": txs})
}

// ReconcileTrip cross-checks a trip's pooled balance against its ledger.
// Members only, like every other trip read.
func (h *TransactionHandler) ReconcileTrip(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	tripID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid trip id")
	}

	report, err := h.ledgerService.Reconcile(c.Context(), tripID, claims.UserID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, report)
}
