package handlers

import (
	"net/http"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimHandler serves the claim lifecycle endpoints.
type ClaimHandler struct {
	Service *services.ClaimService
}

func NewClaimHandler(service *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{Service: service}
}

type createClaimRequest struct {
	FoodItemID      string            `json:"foodItemId" validate:"required"`
	QuantityClaimed int               `json:"quantityClaimed" validate:"omitempty,min=1"`
	Metadata        map[string]string `json:"metadata"`
}

type claimCodeRequest struct {
	ClaimCode string `json:"claimCode" validate:"required"`
}

func claimList(claims []models.FoodClaim) []models.FoodClaim {
	if claims == nil {
		return []models.FoodClaim{}
	}
	return claims
}

// POST /api/food-claims
func (h *ClaimHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := primitive.ObjectIDFromHex(req.FoodItemID)
	if err != nil {
		writeError(w, r, &services.ValidationError{Field: "foodItemId", Message: "is not a valid ID"})
		return
	}
	qty := req.QuantityClaimed
	if qty == 0 {
		qty = 1
	}

	claim, err := h.Service.Submit(r.Context(), actor.UserID, services.ClaimRequest{
		FoodItemID: itemID,
		Quantity:   qty,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.WithFields(log.Fields{"claimID": claim.ID.Hex(), "userID": actor.UserID.Hex()}).Info("Claim submitted")
	writeJSON(w, http.StatusCreated, claim)
}

// GET /api/food-claims/my
func (h *ClaimHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims, err := h.Service.ListMine(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimList(claims))
}

// GET /api/food-claims?status=
func (h *ClaimHandler) ListAllHandler(w http.ResponseWriter, r *http.Request) {
	status := models.ClaimStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, &services.ValidationError{Field: "status", Message: "is not a claim status"})
		return
	}
	claims, err := h.Service.ListAll(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimList(claims))
}

// GET /api/food-claims/pending
func (h *ClaimHandler) ListPendingHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Service.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimList(claims))
}

// PUT /api/food-claims/{id}/approve
func (h *ClaimHandler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim")
	if err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := h.Service.Approve(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// PUT /api/food-claims/{id}/reject
func (h *ClaimHandler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Reason string `json:"reason" validate:"max=500"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := h.Service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// POST /api/food-claims/verify
func (h *ClaimHandler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req claimCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.Service.Verify(r.Context(), req.ClaimCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/food-claims/redeem
func (h *ClaimHandler) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	var req claimCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := h.Service.RedeemByCode(r.Context(), req.ClaimCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// POST /api/food-claims/{id}/complete
func (h *ClaimHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "claim")
	if err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := h.Service.Complete(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
