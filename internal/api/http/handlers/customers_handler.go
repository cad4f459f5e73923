package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/service"
)

// CustomersHandler lists chat directory customers.
type CustomersHandler struct {
	customers *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customers *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{customers: customers}
}

// List handles GET /api/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	customers, err := h.customers.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCustomerListResponse(customers))
}
