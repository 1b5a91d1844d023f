package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mkarlsen/njord/internal/cart"
	"github.com/mkarlsen/njord/internal/domain"
	"github.com/mkarlsen/njord/internal/router"
	"github.com/mkarlsen/njord/internal/service"
	"github.com/mkarlsen/njord/internal/telemetry"
)

// SessionCookieName identifies the cart session.
const SessionCookieName = "njord_session"

// CartHandler mediates between HTTP cart commands and cart operations.
type CartHandler struct {
	sessions *service.Sessions
	validate *validator.Validate
	metrics  *telemetry.CartMetrics
	logger   *slog.Logger
}

// NewCartHandler creates the cart request mediator. metrics may be nil.
func NewCartHandler(sessions *service.Sessions, metrics *telemetry.CartMetrics, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CartHandler{
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
		logger:   logger,
	}
}

// Routes registers the cart endpoints.
func (h *CartHandler) Routes(r *router.Router) {
	r.Get("/cart", h.Show)
	r.Post("/cart/items", h.Add)
	r.Put("/cart/items/{fingerprint}", h.Update)
	r.Patch("/cart/items/{fingerprint}", h.Change)
	r.Delete("/cart/items/{fingerprint}", h.Remove)
	r.Delete("/cart", h.Empty)
	r.Post("/cart/discounts", h.ApplyDiscount)
	r.Delete("/cart/discounts/{code}", h.RemoveDiscount)
}

// AddItemCommand is the payload for adding an item.
type AddItemCommand struct {
	ProductID   int64             `json:"product_id" validate:"required,gt=0"`
	PricelineID int64             `json:"priceline_id" validate:"required,gt=0"`
	Quantity    int               `json:"quantity" validate:"gte=0"`
	Category    string            `json:"category" validate:"max=128"`
	Data        map[string]string `json:"data" validate:"max=32"`
	Addons      []int64           `json:"addons" validate:"max=16,dive,gt=0"`
}

// UpdateItemCommand is the payload for a quantity change. Zero removes
// the item.
type UpdateItemCommand struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// ChangeItemCommand swaps an item to another product or price selection.
type ChangeItemCommand struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	PricelineID int64   `json:"priceline_id" validate:"required,gt=0"`
	Addons      []int64 `json:"addons" validate:"max=16,dive,gt=0"`
}

// DiscountCommand applies a promo code.
type DiscountCommand struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

// cartResponse is the standard response envelope: the snapshot view plus
// any warning from the operation.
type cartResponse struct {
	Cart       cart.Snapshot `json:"cart"`
	LowStock   bool          `json:"low_stock,omitempty"`
	QtyReduced int           `json:"qty_reduced,omitempty"`
}

// Show returns the cart snapshot.
func (h *CartHandler) Show(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// Add handles the add command.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)

	var cmd AddItemCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.record("add", err)
		respondError(w, r, err)
		return
	}
	// Omitted quantity defaults to one unit.
	if cmd.Quantity == 0 {
		cmd.Quantity = 1
	}
	if err := h.validate.Struct(cmd); err != nil {
		err = domain.Errorf(domain.EINVALID, "", "Invalid add request: %v", err)
		h.record("add", err)
		respondError(w, r, err)
		return
	}

	var (
		snap cart.Snapshot
		res  *cart.AddResult
	)
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		var err error
		res, err = c.AddItem(r.Context(), cmd.Quantity, cmd.ProductID, cmd.PricelineID, cmd.Category, cmd.Data, cmd.Addons)
		if err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	h.record("add", err)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ItemsAdded.Add(float64(res.Item.Quantity))
		if res.LowStock {
			h.metrics.LowStockReductions.Inc()
		}
		value, _ := snap.Totals.Total.Float64()
		h.metrics.CartValue.Observe(value)
	}

	respondJSON(w, http.StatusOK, cartResponse{
		Cart:       snap,
		LowStock:   res.LowStock,
		QtyReduced: res.QtyReduced,
	})
}

// Update handles the quantity-change command.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)
	fingerprint := r.PathValue("fingerprint")

	var cmd UpdateItemCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.record("update", err)
		respondError(w, r, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		err = domain.Errorf(domain.EINVALID, "", "Invalid update request: %v", err)
		h.record("update", err)
		respondError(w, r, err)
		return
	}

	var (
		snap cart.Snapshot
		res  *cart.AddResult
	)
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		var err error
		res, err = c.UpdateItem(r.Context(), fingerprint, *cmd.Quantity)
		if err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	h.record("update", err)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := cartResponse{Cart: snap}
	if res != nil {
		out.LowStock = res.LowStock
		out.QtyReduced = res.QtyReduced
	}
	respondJSON(w, http.StatusOK, out)
}

// Change handles the selection-swap command.
func (h *CartHandler) Change(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)
	fingerprint := r.PathValue("fingerprint")

	var cmd ChangeItemCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.record("change", err)
		respondError(w, r, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		err = domain.Errorf(domain.EINVALID, "", "Invalid change request: %v", err)
		h.record("change", err)
		respondError(w, r, err)
		return
	}

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		_, err := c.ChangeItem(r.Context(), fingerprint, cmd.ProductID, cmd.PricelineID, cmd.Addons)
		if err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	h.record("change", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// Remove handles the remove command. Removing an unknown fingerprint
// still returns the current snapshot.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)
	fingerprint := r.PathValue("fingerprint")

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		c.RemoveItem(r.Context(), fingerprint)
		snap = c.Snapshot()
		return nil
	})
	h.record("remove", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// Empty handles the empty command.
func (h *CartHandler) Empty(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		c.Clear(r.Context())
		snap = c.Snapshot()
		return nil
	})
	h.record("empty", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// ApplyDiscount redeems a promo code against the session's cart.
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)

	var cmd DiscountCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.record("apply_discount", err)
		respondError(w, r, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		err = domain.Errorf(domain.EINVALID, "", "Invalid discount request: %v", err)
		h.record("apply_discount", err)
		respondError(w, r, err)
		return
	}

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		if err := c.ApplyDiscount(r.Context(), cmd.Code); err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	h.record("apply_discount", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// RemoveDiscount drops an applied promo code.
func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)
	code := r.PathValue("code")

	var snap cart.Snapshot
	err := h.sessions.With(sid, func(c *cart.Cart) error {
		c.RemoveDiscount(r.Context(), code)
		snap = c.Snapshot()
		return nil
	})
	h.record("remove_discount", err)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: snap})
}

// sessionID returns the cart session id from the request cookie, minting
// a new one when absent.
func (h *CartHandler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	sid := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if h.metrics != nil {
		h.metrics.CartsCreated.Inc()
	}
	return sid
}

// record reports the operation outcome to the metrics collectors.
func (h *CartHandler) record(op string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EINVALID:
			outcome = "invalid"
		case domain.ECONFLICT:
			outcome = "conflict"
		case domain.ESTOCK:
			outcome = "out_of_stock"
		case domain.ENOTFOUND:
			outcome = "not_found"
		default:
			outcome = "error"
		}
	}
	h.metrics.RecordOperation(op, outcome)
}
