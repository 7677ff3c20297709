package handlers

import (
	"net/http"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	log "github.com/sirupsen/logrus"
)

type DonationHandler struct {
	Service *services.DonationService
}

func NewDonationHandler(service *services.DonationService) *DonationHandler {
	return &DonationHandler{Service: service}
}

// GET /api/donations?status=
func (h *DonationHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	status := models.DonationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.DonationAvailable, models.DonationReservedForNGO, models.DonationCollected:
	default:
		writeError(w, r, &services.ValidationError{Field: "status", Message: "is not a donation status"})
		return
	}
	donations, err := h.Service.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if donations == nil {
		donations = []models.FoodDonation{}
	}
	writeJSON(w, http.StatusOK, donations)
}

// POST /api/donations/transfer-expired
func (h *DonationHandler) TransferExpiredHandler(w http.ResponseWriter, r *http.Request) {
	created, err := h.Service.TransferExpired(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.WithField("created", created).Info("Expired stock transferred to donations")
	writeJSON(w, http.StatusOK, map[string]int{"transferred": created})
}

// PUT /api/donations/{id}/reserve
func (h *DonationHandler) ReserveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "donation")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ngo models.NGOContact
	if err := decodeJSON(r, &ngo); err != nil {
		writeError(w, r, err)
		return
	}
	donation, err := h.Service.Reserve(r.Context(), id, ngo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donation)
}

// PUT /api/donations/{id}/collect
func (h *DonationHandler) CollectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "donation")
	if err != nil {
		writeError(w, r, err)
		return
	}
	donation, err := h.Service.Collect(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donation)
}
