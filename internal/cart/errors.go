package cart

import "github.com/mkarlsen/njord/internal/domain"

// Pre-defined cart errors.
var (
	ErrInvalidItem     = domain.Errorf(domain.EINVALID, "", "Product or price option is not valid")
	ErrInvalidQuantity = domain.Errorf(domain.EINVALID, "", "Quantity must not be negative")
	ErrExclusive       = domain.Errorf(domain.ECONFLICT, "", "Recurring items must be purchased separately from other items")
	ErrOutOfStock      = domain.Errorf(domain.ESTOCK, "", "Insufficient stock to fulfill the requested quantity")
)
