package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/service"
)

// AssignmentsHandler exposes customer routing.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignments *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{assignments: assignments}
}

// List handles GET /api/customer-vendor-assignments.
func (h *AssignmentsHandler) List(c *fiber.Ctx) error {
	mapping, err := h.assignments.ListAssignments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.AssignmentsResponse{Assignments: mapping})
}

// Assign handles POST /api/assign-customer-to-vendor.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.assignments.Assign(c.UserContext(), req.CustomerID, req.VendorID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}

// Unassign handles DELETE /api/customer-vendor-assignments/:customerUid.
func (h *AssignmentsHandler) Unassign(c *fiber.Ctx) error {
	if err := h.assignments.Unassign(c.UserContext(), c.Params("customerUid")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}

// VendorCustomers handles GET /api/vendor/:uid/customers.
func (h *AssignmentsHandler) VendorCustomers(c *fiber.Ctx) error {
	customers, err := h.assignments.AssignedCustomers(c.UserContext(), c.Params("uid"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCustomerListResponse(customers))
}
