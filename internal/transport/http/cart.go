package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mikethetike/bn-api/internal/app"
	"github.com/mikethetike/bn-api/internal/auth"
	"github.com/mikethetike/bn-api/internal/domain"
)

// CartService is the slice of the cart the HTTP layer needs.
type CartService interface {
	Show(ctx context.Context, userID string) (*app.CartView, error)
	AddItem(ctx context.Context, in app.AddItemInput) (domain.Order, error)
	RemoveItem(ctx context.Context, in app.RemoveItemInput) (domain.Order, error)
}

type cartItemResponse struct {
	ID               string `json:"id"`
	TicketTypeID     string `json:"ticket_type_id"`
	TicketTypeName   string `json:"ticket_type_name"`
	TicketPricingID  string `json:"ticket_pricing_id"`
	Quantity         int    `json:"quantity"`
	UnitPriceInCents int64  `json:"unit_price_in_cents"`
	LineTotalInCents int64  `json:"line_total_in_cents"`
}

type cartResponse struct {
	ID           string             `json:"id"`
	Status       string             `json:"status"`
	Items        []cartItemResponse `json:"items"`
	TotalInCents int64              `json:"total_in_cents"`
	CreatedAt    time.Time          `json:"created_at"`
}

func cartResponseFrom(view *app.CartView) cartResponse {
	items := make([]cartItemResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, cartItemResponse{
			ID:               item.ID,
			TicketTypeID:     item.TicketTypeID,
			TicketTypeName:   item.TicketTypeName,
			TicketPricingID:  item.TicketPricingID,
			Quantity:         item.Quantity,
			UnitPriceInCents: item.UnitPriceInCents,
			LineTotalInCents: item.LineTotalInCents(),
		})
	}
	return cartResponse{
		ID:           view.Order.ID,
		Status:       string(view.Order.Status),
		Items:        items,
		TotalInCents: view.TotalInCents,
		CreatedAt:    view.Order.CreatedAt,
	}
}

// HandleCart serves the current user's draft cart.
func HandleCart(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		view, err := svc.Show(r.Context(), auth.UserIDFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if view == nil {
			writeError(w, http.StatusNotFound, codeCartNotFound, "cart not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cartResponseFrom(view))
	}
}

type addCartItemRequest struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	BoxOffice    bool   `json:"box_office,omitempty"`
}

// HandleCartItems adds an item to the caller's cart, creating the cart when
// none exists.
func HandleCartItems(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req addCartItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.TicketTypeID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "ticket_type_id is required")
			return
		}

		claims, _ := auth.ClaimsFromContext(r.Context())
		if req.BoxOffice && (claims == nil || !claims.HasScope(auth.ScopeBoxOffice)) {
			writeError(w, http.StatusForbidden, codeForbidden, "insufficient scope")
			return
		}

		order, err := svc.AddItem(r.Context(), app.AddItemInput{
			UserID:       auth.UserIDFromContext(r.Context()),
			TicketTypeID: req.TicketTypeID,
			Quantity:     req.Quantity,
			BoxOffice:    req.BoxOffice,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		view, err := svc.Show(r.Context(), auth.UserIDFromContext(r.Context()))
		if err != nil || view == nil {
			// The cart was just written; fall back to the bare order.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(cartResponse{ID: order.ID, Status: string(order.Status), CreatedAt: order.CreatedAt})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(cartResponseFrom(view))
	}
}

type removeCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

// HandleCartItem removes or decrements one cart line, path
// /cart/items/{id}.
func HandleCartItem(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := parseCartItemPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req removeCartItemRequest
		if r.Body != nil && r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		_, err := svc.RemoveItem(r.Context(), app.RemoveItemInput{
			UserID:   auth.UserIDFromContext(r.Context()),
			ItemID:   itemID,
			Quantity: req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		view, err := svc.Show(r.Context(), auth.UserIDFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if view == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cartResponseFrom(view))
	}
}

func parseCartItemPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "cart" || parts[1] != "items" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
