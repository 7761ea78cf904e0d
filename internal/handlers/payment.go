package handlers

import (
	"waypool/internal/models"
	"waypool/internal/services/gateway"
	"waypool/internal/services/payment"
	"waypool/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	paymentService payment.Service
}

func NewPaymentHandler(paymentService payment.Service) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PayShare pays the caller's share of an expense, from the wallet or through
// an external gateway capture.
func (h *PaymentHandler) PayShare(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	expenseID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid expense id")
	}

	var input struct {
		Amount string `json:"amount" validate:"required"`
		Method string `json:"method" validate:"required,oneof=wallet external"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validate.Struct(input); err != nil {
		return response.BadRequest(c, err.Error())
	}

	amount, err := models.MoneyFromString(input.Amount)
	if err != nil {
		return response.BadRequest(c, "invalid amount")
	}

	result, err := h.paymentService.PayShare(c.Context(), payment.PayShareInput{
		ExpenseID: expenseID,
		PayerID:   claims.UserID,
		Amount:    amount,
		Method:    input.Method,
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, result)
}

// ConfirmPayment completes an external capture once the client finished the
// charge. Safe to retry; a confirmed payment replays its result.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return response.Unauthorized(c)
	}
	transactionID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid transaction id")
	}

	var input struct {
		CaptureID string `json:"capture_id" validate:"required"`
		Signature string `json:"signature"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validate.Struct(input); err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.paymentService.ConfirmExternalPayment(c.Context(), transactionID, gateway.Proof{
		CaptureID: input.CaptureID,
		Signature: input.Signature,
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, result)
}
