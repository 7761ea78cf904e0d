package handlers

import (
	"waypool/internal/models"
	"waypool/internal/services/gateway"
	"waypool/internal/services/wallet"
	"waypool/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	walletService wallet.Service
}

func NewWalletHandler(walletService wallet.Service) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	w, err := h.walletService.GetWallet(c.Context(), claims.UserID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"wallet": w})
}

// CreateDeposit starts a gateway-backed top-up of the caller's wallet.
func (h *WalletHandler) CreateDeposit(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Amount string `json:"amount" validate:"required"`
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

	result, err := h.walletService.CreateDeposit(c.Context(), claims.UserID, amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, result)
}

// ConfirmDeposit credits the wallet once the gateway charge succeeded.
func (h *WalletHandler) ConfirmDeposit(c *fiber.Ctx) error {
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

	result, err := h.walletService.ConfirmDeposit(c.Context(), transactionID, gateway.Proof{
		CaptureID: input.CaptureID,
		Signature: input.Signature,
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, result)
}
