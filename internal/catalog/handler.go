// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"carrental/internal/api"

	"go.uber.org/zap"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// HandleList serves GET /cars?available=&category=&search=&limit=&offset=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	available, err := api.QueryBool(r, "available")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	page, err := api.QueryPage(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	filter := CarFilter{
		Available: available,
		Category:  r.URL.Query().Get("category"),
		Search:    r.URL.Query().Get("search"),
	}

	cars, err := h.store.List(r.Context(), filter, page)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, cars)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	car, err := h.store.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, car)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req NewCar
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}

	car, err := h.store.Insert(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.Logger(r.Context()).Info("car added", zap.Int64("car_id", car.ID))
	api.WriteJSON(w, http.StatusCreated, car)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	var patch CarPatch
	if err := api.DecodeJSON(w, r, &patch); err != nil {
		api.WriteError(w, r, err)
		return
	}

	car, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, car)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	car, err := h.store.Delete(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.Logger(r.Context()).Info("car deleted", zap.Int64("car_id", car.ID))
	api.WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Car     *Car   `json:"car"`
	}{Message: "car deleted successfully", Car: car})
}
