package rental

import (
	"net/http"

	"carrental/internal/api"
	"carrental/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleList serves GET /rentals?customer_id=&status=&limit=&offset=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	customerID, err := api.QueryInt64(r, "customer_id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	page, err := api.QueryPage(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	filter := RentalFilter{
		CustomerID: customerID,
		Status:     Status(r.URL.Query().Get("status")),
	}

	rentals, err := h.service.List(r.Context(), caller, filter, page)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rentals)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rental)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	events, err := h.service.History(r.Context(), caller, id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleRent(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	var req RentRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Rent(r.Context(), caller, req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, rental)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	rental, err := h.service.Return(r.Context(), caller, id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rental)
}
