package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tickethub/booking-engine/internal/core/domain"
	"github.com/tickethub/booking-engine/internal/core/service"
	"github.com/tickethub/booking-engine/internal/port"
)

// HTTPHandler is the transport glue: it decodes requests, consults the
// authorization collaborator, invokes the coordinators and translates domain
// errors into stable machine-readable responses. No booking logic lives here.
type HTTPHandler struct {
	bookingService *service.BookingService
	authorizer     port.Authorizer
	logger         *zap.Logger
}

func NewHTTPHandler(bookingService *service.BookingService, authorizer port.Authorizer, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		bookingService: bookingService,
		authorizer:     authorizer,
		logger:         logger,
	}
}

// Register wires the handler's routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/bookings", h.Bookings)
	mux.HandleFunc("/api/bookings/", h.BookingByID)
	mux.HandleFunc("/api/tickets/", h.TicketByID)
}

type lineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type createBookingRequest struct {
	RequestID string        `json:"request_id"`
	BuyerID   string        `json:"buyer_id"`
	Lines     []lineRequest `json:"line_items"`
}

type cancelBookingRequest struct {
	RequesterID string `json:"requester_id"`
	Role        string `json:"role"`
}

type upsertTicketRequest struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Available int    `json:"available"`
}

type lineResponse struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type bookingResponse struct {
	ID         string         `json:"id"`
	BuyerID    string         `json:"buyer_id"`
	TotalPrice int64          `json:"total_price"`
	CreatedAt  time.Time      `json:"created_at"`
	Lines      []lineResponse `json:"line_items"`
}

type ticketResponse struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Available int    `json:"available"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (h *HTTPHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.BuyerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "buyer_id is required")
		return
	}

	if req.RequestID != "" {
		if err := h.bookingService.ClaimRequest(r.Context(), req.RequestID); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	requests := make([]service.BookingRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		requests = append(requests, service.BookingRequest{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	booking, err := h.bookingService.CreateBooking(r.Context(), req.BuyerID, requests)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (h *HTTPHandler) BookingByID(w http.ResponseWriter, r *http.Request) {
	bookingID := strings.TrimPrefix(r.URL.Path, "/api/bookings/")
	if bookingID == "" || strings.Contains(bookingID, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		booking, err := h.bookingService.GetBooking(r.Context(), bookingID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(booking))

	case http.MethodDelete:
		h.cancelBooking(w, r, bookingID)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) cancelBooking(w http.ResponseWriter, r *http.Request, bookingID string) {
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "requester_id is required")
		return
	}

	booking, err := h.bookingService.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	allowed, err := h.mayCancel(r, req, booking)
	if err != nil {
		h.logger.Error("authorization check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden", "not allowed to cancel this booking")
		return
	}

	if err := h.bookingService.CancelBooking(r.Context(), bookingID, req.RequesterID, time.Now()); err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "booking cancelled"})
}

// mayCancel implements the collaborator-side rule: the original buyer may
// cancel, as may an inventory owner owning every referenced item.
func (h *HTTPHandler) mayCancel(r *http.Request, req cancelBookingRequest, booking *domain.Booking) (bool, error) {
	if req.RequesterID == booking.BuyerID {
		return true, nil
	}

	principal := port.Principal{ID: req.RequesterID, Role: port.Role(req.Role)}
	for _, li := range booking.Lines {
		owns, err := h.authorizer.Owns(r.Context(), principal, li.ItemID)
		if err != nil {
			return false, err
		}
		if !owns {
			return false, nil
		}
	}
	return true, nil
}

func (h *HTTPHandler) TicketByID(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	if itemID == "" || strings.Contains(itemID, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ticket, err := h.bookingService.GetTicket(r.Context(), itemID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketResponse{
			ItemID:    ticket.ItemID,
			Name:      ticket.Name,
			UnitPrice: ticket.UnitPrice,
			Available: ticket.Available,
		})

	case http.MethodPut:
		var req upsertTicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		if req.UnitPrice < 0 || req.Available < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "unit_price and available must be non-negative")
			return
		}
		err := h.bookingService.CreateTicket(r.Context(), domain.Ticket{
			ItemID:    itemID,
			Name:      req.Name,
			UnitPrice: req.UnitPrice,
			Available: req.Available,
		})
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ticket saved"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalidQty   *domain.InvalidQuantityError
		notFound     *domain.ItemNotFoundError
		insufficient *domain.InsufficientInventoryError
		expired      *domain.WindowExpiredError
		persistence  *domain.PersistenceError
	)

	switch {
	case errors.Is(err, domain.ErrEmptyRequest):
		writeError(w, http.StatusBadRequest, "empty_request", err.Error())
	case errors.As(err, &invalidQty):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, "insufficient_inventory", err.Error())
	case errors.As(err, &expired):
		writeError(w, http.StatusUnprocessableEntity, "window_expired", err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "duplicate_request", err.Error())
	case errors.As(err, &persistence):
		h.logger.Error("persistence failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "persistence_failure", "storage failure, safe to retry")
	default:
		h.logger.Error("unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	lines := make([]lineResponse, 0, len(b.Lines))
	for _, li := range b.Lines {
		lines = append(lines, lineResponse{
			ItemID:    li.ItemID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		})
	}
	return bookingResponse{
		ID:         b.ID,
		BuyerID:    b.BuyerID,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
		Lines:      lines,
	}
}
