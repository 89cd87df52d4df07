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

// AdminPricingService is the minimal interface behind the admin pricing
// endpoints.
type AdminPricingService interface {
	CreateTicketType(ctx context.Context, in app.CreateTicketTypeInput) (domain.TicketType, error)
	ListPricing(ctx context.Context, ticketTypeID string) ([]domain.TicketPricing, error)
	CreatePricing(ctx context.Context, in app.CreatePricingInput) (domain.TicketPricing, error)
	UpdatePricing(ctx context.Context, pricingID string, attr domain.PricingAttributes, actingUserID string) (domain.TicketPricing, error)
	DestroyPricing(ctx context.Context, pricingID, actingUserID string) error
	StartSales(ctx context.Context, pricingID, actingUserID string) error
}

type ticketTypeResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type pricingResponse struct {
	ID                string    `json:"id"`
	TicketTypeID      string    `json:"ticket_type_id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	PriceInCents      int64     `json:"price_in_cents"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	IsBoxOfficeOnly   bool      `json:"is_box_office_only"`
	PreviousPricingID string    `json:"previous_pricing_id,omitempty"`
}

func pricingResponseFrom(p domain.TicketPricing) pricingResponse {
	return pricingResponse{
		ID:                p.ID,
		TicketTypeID:      p.TicketTypeID,
		Name:              p.Name,
		Status:            string(p.Status),
		PriceInCents:      p.PriceInCents,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		IsBoxOfficeOnly:   p.IsBoxOfficeOnly,
		PreviousPricingID: p.PreviousPricingID,
	}
}

type createTicketTypeRequest struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// HandleAdminTicketTypes creates ticket types, path /admin/ticket-types.
func HandleAdminTicketTypes(svc AdminPricingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createTicketTypeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		tt, err := svc.CreateTicketType(r.Context(), app.CreateTicketTypeInput{
			EventID:   req.EventID,
			Name:      req.Name,
			Capacity:  req.Capacity,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ticketTypeResponse{
			ID:        tt.ID,
			EventID:   tt.EventID,
			Name:      tt.Name,
			Capacity:  tt.Capacity,
			StartDate: tt.StartDate,
			EndDate:   tt.EndDate,
		})
	}
}

type createPricingRequest struct {
	Name            string    `json:"name"`
	PriceInCents    int64     `json:"price_in_cents"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	IsBoxOfficeOnly bool      `json:"is_box_office_only,omitempty"`
	Status          string    `json:"status,omitempty"`
}

// HandleAdminTicketTypePricing lists and creates pricing for one ticket
// type, path /admin/ticket-types/{id}/ticket-pricing.
func HandleAdminTicketTypePricing(svc AdminPricingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketTypeID, ok := parseTicketTypePricingPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			rows, err := svc.ListPricing(r.Context(), ticketTypeID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]pricingResponse, 0, len(rows))
			for _, p := range rows {
				resp = append(resp, pricingResponseFrom(p))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)

		case http.MethodPost:
			var req createPricingRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			p, err := svc.CreatePricing(r.Context(), app.CreatePricingInput{
				TicketTypeID:    ticketTypeID,
				Name:            req.Name,
				PriceInCents:    req.PriceInCents,
				StartDate:       req.StartDate,
				EndDate:         req.EndDate,
				IsBoxOfficeOnly: req.IsBoxOfficeOnly,
				Status:          domain.PricingStatus(req.Status),
				ActingUserID:    auth.UserIDFromContext(r.Context()),
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(pricingResponseFrom(p))

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

type updatePricingRequest struct {
	Name            *string    `json:"name"`
	PriceInCents    *int64     `json:"price_in_cents"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	IsBoxOfficeOnly *bool      `json:"is_box_office_only"`
}

// HandleAdminPricing updates or deletes one pricing row, and starts its
// sales early: /admin/ticket-pricing/{id} and
// /admin/ticket-pricing/{id}/start-sales.
func HandleAdminPricing(svc AdminPricingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pricingID, action, ok := parsePricingPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		actingUserID := auth.UserIDFromContext(r.Context())

		if action == "start-sales" {
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			if err := svc.StartSales(r.Context(), pricingID, actingUserID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req updatePricingRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			p, err := svc.UpdatePricing(r.Context(), pricingID, domain.PricingAttributes{
				Name:            req.Name,
				PriceInCents:    req.PriceInCents,
				StartDate:       req.StartDate,
				EndDate:         req.EndDate,
				IsBoxOfficeOnly: req.IsBoxOfficeOnly,
			}, actingUserID)
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(pricingResponseFrom(p))

		case http.MethodDelete:
			if err := svc.DestroyPricing(r.Context(), pricingID, actingUserID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseTicketTypePricingPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "ticket-types" || parts[3] != "ticket-pricing" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func parsePricingPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 {
		return "", "", false
	}
	if parts[0] != "admin" || parts[1] != "ticket-pricing" || parts[2] == "" {
		return "", "", false
	}
	if len(parts) == 4 {
		if parts[3] != "start-sales" {
			return "", "", false
		}
		return parts[2], "start-sales", true
	}
	return parts[2], "", true
}
