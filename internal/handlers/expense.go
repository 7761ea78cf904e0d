package handlers

import (
	"time"

	"waypool/internal/models"
	"waypool/internal/services/expense"
	"waypool/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type ExpenseHandler struct {
	expenseService expense.Service
}

func NewExpenseHandler(expenseService expense.Service) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// CreateExpense splits a new expense across the trip's accepted members.
func (h *ExpenseHandler) CreateExpense(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	tripID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid trip id")
	}

	var input struct {
		Title       string `json:"title" validate:"required,max=200"`
		Description string `json:"description" validate:"max=2000"`
		Amount      string `json:"amount" validate:"required"`
		Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
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

	var date time.Time
	if input.Date != "" {
		date, _ = time.Parse("2006-01-02", input.Date)
	}

	exp, err := h.expenseService.CreateExpense(c.Context(), expense.CreateExpenseInput{
		TripID:      tripID,
		CreatorID:   claims.UserID,
		Title:       input.Title,
		Description: input.Description,
		Amount:      amount,
		Date:        date,
	})
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, fiber.Map{"expense": exp})
}

// GetExpenses lists a trip's expenses with the advisory payment deadline.
func (h *ExpenseHandler) GetExpenses(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	tripID, err := paramUint(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid trip id")
	}

	out, err := h.expenseService.GetExpenses(c.Context(), tripID, claims.UserID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, out)
}
