package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/repository"
	"github.com/spec-kit/vendor-desk/internal/service"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// VendorsHandler exposes the vendor directory to the super-user.
type VendorsHandler struct {
	vendors        *service.VendorService
	maxUploadBytes int
}

// NewVendorsHandler constructs handler.
func NewVendorsHandler(vendors *service.VendorService, maxUploadBytes int) *VendorsHandler {
	return &VendorsHandler{vendors: vendors, maxUploadBytes: maxUploadBytes}
}

// Sync handles POST /api/sync-vendors. The CSV is either the raw body
// (text/csv) or the "file" part of a multipart form.
func (h *VendorsHandler) Sync(c *fiber.Ctx) error {
	var body io.Reader
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperrors.NewValidationError("csv file required", map[string]any{"field": "file"})
		}
		if h.maxUploadBytes > 0 && fh.Size > int64(h.maxUploadBytes) {
			return apperrors.NewPayloadTooLarge(h.maxUploadBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("unreadable csv file", map[string]any{"field": "file"})
		}
		defer f.Close()
		body = f
	} else {
		raw := c.Body()
		if h.maxUploadBytes > 0 && len(raw) > h.maxUploadBytes {
			return apperrors.NewPayloadTooLarge(h.maxUploadBytes)
		}
		body = bytes.NewReader(raw)
	}

	res, err := h.vendors.Sync(c.UserContext(), body)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSyncResponse(res))
}

// Add handles POST /api/admin/add-vendor.
func (h *VendorsHandler) Add(c *fiber.Ctx) error {
	var req dto.AddVendorRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	vendor, password, err := h.vendors.AddVendor(c.UserContext(), service.AddVendorInput{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.AddVendorResponse{
		Message:  "Vendor " + vendor.Name + " added",
		Vendor:   dto.NewVendorResponse(*vendor),
		Password: password,
	})
}

// List handles GET /api/vendors.
func (h *VendorsHandler) List(c *fiber.Ctx) error {
	vendors, err := h.vendors.List(c.UserContext(), repository.VendorFilter{})
	if err != nil {
		return err
	}
	out := dto.VendorListResponse{Vendors: make([]dto.VendorResponse, 0, len(vendors))}
	for _, v := range vendors {
		out.Vendors = append(out.Vendors, dto.NewVendorResponse(v))
	}
	return c.JSON(out)
}

// Get handles GET /api/vendors/:uid.
func (h *VendorsHandler) Get(c *fiber.Ctx) error {
	vendor, err := h.vendors.Get(c.UserContext(), c.Params("uid"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"vendor": dto.NewVendorResponse(*vendor)})
}
