package handlers

import (
	"waypool/internal/services/tripwallet"
	"waypool/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type TripWalletHandler struct {
	tripWalletService tripwallet.Service
}

func NewTripWalletHandler(tripWalletService tripwallet.Service) *TripWalletHandler {
	return &TripWalletHandler{tripWalletService: tripWalletService}
}

func (h *TripWalletHandler) tripAndCaller(c *fiber.Ctx) (tripID, callerID uint, err error) {
	claims, err := extractUserClaims(c)
	if err != nil {
		return 0, 0, response.Unauthorized(c)
	}
	tripID, perr := paramUint(c, "id")
	if perr != nil {
		return 0, 0, response.BadRequest(c, "invalid trip id")
	}
	return tripID, claims.UserID, nil
}

func (h *TripWalletHandler) GetDetails(c *fiber.Ctx) error {
	tripID, callerID, err := h.tripAndCaller(c)
	if err != nil {
		return err
	}
	details, err := h.tripWalletService.GetDetails(c.Context(), tripID, callerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, details)
}

func (h *TripWalletHandler) InitiateWithdrawal(c *fiber.Ctx) error {
	tripID, callerID, err := h.tripAndCaller(c)
	if err != nil {
		return err
	}
	if err := h.tripWalletService.InitiateWithdrawal(c.Context(), tripID, callerID); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"message": "withdrawal initiated"})
}

func (h *TripWalletHandler) Vote(c *fiber.Ctx) error {
	tripID, callerID, err := h.tripAndCaller(c)
	if err != nil {
		return err
	}
	details, err := h.tripWalletService.Vote(c.Context(), tripID, callerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, details)
}

func (h *TripWalletHandler) CancelWithdrawal(c *fiber.Ctx) error {
	tripID, callerID, err := h.tripAndCaller(c)
	if err != nil {
		return err
	}
	if err := h.tripWalletService.CancelWithdrawal(c.Context(), tripID, callerID); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"message": "withdrawal cancelled"})
}

func (h *TripWalletHandler) TransferToAuthor(c *fiber.Ctx) error {
	tripID, callerID, err := h.tripAndCaller(c)
	if err != nil {
		return err
	}
	result, err := h.tripWalletService.TransferToAuthor(c.Context(), tripID, callerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, result)
}
