package customer

import (
	"net/http"

	"carrental/internal/api"
	"carrental/internal/auth"
)

type Handler struct {
	service Service
	store   Store
}

func NewHandler(service Service, store Store) *Handler {
	return &Handler{service: service, store: store}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}

	c, err := h.service.Register(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}

	session, err := h.service.Login(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, session)
}

// HandleMe returns the authenticated caller's account.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	c, err := h.store.Get(r.Context(), caller.CustomerID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, c)
}

// HandleList serves GET /customers?search=&limit=&offset= for admins.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := api.QueryPage(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	customers, err := h.store.List(r.Context(), CustomerFilter{Search: r.URL.Query().Get("search")}, page)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, customers)
}
