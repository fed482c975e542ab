// Package validation holds request-level parsing and bounds checks
// shared by the HTTP handlers.
package validation

import (
	"strconv"

	domainerr "rigshare/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// UintParam parses a numeric path parameter.
func UintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, domainerr.ErrValidation.WithMessage("invalid %s %q", name, raw)
	}
	return uint(v), nil
}

// Pagination reads limit/offset query parameters with sane bounds.
func Pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Amount rejects non-positive or absurd monetary values before they
// reach the services.
func Amount(amount float64) error {
	if amount <= 0 {
		return domainerr.ErrValidation.WithMessage("amount must be positive")
	}
	if amount > 1_000_000 {
		return domainerr.ErrValidation.WithMessage("amount exceeds the supported maximum")
	}
	return nil
}
