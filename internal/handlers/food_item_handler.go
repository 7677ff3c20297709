package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/internal/storage"
	log "github.com/sirupsen/logrus"
)

// FoodItemHandler serves canteen listings.
type FoodItemHandler struct {
	Service *services.FoodItemService
	Images  storage.ImageStore
}

func NewFoodItemHandler(service *services.FoodItemService, images storage.ImageStore) *FoodItemHandler {
	return &FoodItemHandler{Service: service, Images: images}
}

// foodItemRequest is accepted as JSON or as multipart form fields.
// Pointer fields distinguish "not sent" for partial updates.
type foodItemRequest struct {
	Name              *string    `json:"name" validate:"omitempty,max=200"`
	Description       *string    `json:"description" validate:"omitempty,max=2000"`
	CanteenName       *string    `json:"canteenName" validate:"omitempty,max=200"`
	Location          *string    `json:"location" validate:"omitempty,max=200"`
	QuantityAvailable *int       `json:"quantityAvailable" validate:"omitempty,min=0"`
	AvailableUntil    *time.Time `json:"availableUntil"`
	ImageURL          *string    `json:"imageUrl"`
}

func (req foodItemRequest) input() services.FoodItemInput {
	in := services.FoodItemInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.CanteenName != nil {
		in.CanteenName = *req.CanteenName
	}
	if req.Location != nil {
		in.Location = *req.Location
	}
	if req.QuantityAvailable != nil {
		in.Quantity = *req.QuantityAvailable
	}
	if req.AvailableUntil != nil {
		in.AvailableUntil = *req.AvailableUntil
	}
	if req.ImageURL != nil {
		in.ImageURL = *req.ImageURL
	}
	return in
}

func (req foodItemRequest) patch() models.FoodItemPatch {
	return models.FoodItemPatch{
		Name:              req.Name,
		Description:       req.Description,
		CanteenName:       req.CanteenName,
		Location:          req.Location,
		QuantityAvailable: req.QuantityAvailable,
		AvailableUntil:    req.AvailableUntil,
		ImageURL:          req.ImageURL,
	}
}

// readFoodItem decodes the request body. For multipart requests carrying an
// image, the image is stored and its URL is returned so the caller can remove
// it if the rest of the request fails.
func (h *FoodItemHandler) readFoodItem(r *http.Request) (foodItemRequest, string, error) {
	var req foodItemRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decodeJSON(r, &req)
		return req, "", err
	}

	r.Body = http.MaxBytesReader(nil, r.Body, storage.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		return req, "", &services.ValidationError{Message: "File too big or invalid format"}
	}
	if err := formFields(r.MultipartForm, &req); err != nil {
		return req, "", err
	}
	if err := validateStruct(&req); err != nil {
		return req, "", err
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, "", nil
	}
	if err != nil {
		return req, "", &services.ValidationError{Field: "image", Message: "could not be read"}
	}
	defer file.Close()

	if header.Size > storage.MaxImageSize {
		return req, "", &services.ValidationError{Field: "image", Message: "must be at most 10 MiB"}
	}
	if h.Images == nil {
		return req, "", &services.ValidationError{Field: "image", Message: "uploads are disabled"}
	}
	url, err := h.Images.Save(r.Context(), header.Header.Get("Content-Type"), file, header.Size)
	if errors.Is(err, storage.ErrUnsupportedType) {
		return req, "", &services.ValidationError{Field: "image", Message: err.Error()}
	}
	if err != nil {
		return req, "", err
	}
	req.ImageURL = &url
	return req, url, nil
}

func formFields(form *multipart.Form, req *foodItemRequest) error {
	value := func(key string) (string, bool) {
		v, ok := form.Value[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}
	if v, ok := value("name"); ok {
		req.Name = &v
	}
	if v, ok := value("description"); ok {
		req.Description = &v
	}
	if v, ok := value("canteenName"); ok {
		req.CanteenName = &v
	}
	if v, ok := value("location"); ok {
		req.Location = &v
	}
	if v, ok := value("quantityAvailable"); ok && v != "" {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return &services.ValidationError{Field: "quantityAvailable", Message: "must be a number"}
		}
		req.QuantityAvailable = &qty
	}
	if v, ok := value("availableUntil"); ok && v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return &services.ValidationError{Field: "availableUntil", Message: "must be an RFC 3339 timestamp"}
		}
		req.AvailableUntil = &until
	}
	return nil
}

// discardImage removes an upload whose request did not go through.
func (h *FoodItemHandler) discardImage(ctx context.Context, url string) {
	if url == "" || h.Images == nil {
		return
	}
	if err := h.Images.Delete(ctx, url); err != nil {
		log.WithError(err).WithField("image", url).Warn("Failed to remove orphaned upload")
	}
}

// GET /api/food-items
func (h *FoodItemHandler) ListActiveHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.FoodItemView{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/food-items/my
func (h *FoodItemHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.Service.ListByCreator(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.FoodItemView{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/food-items/{id}
func (h *FoodItemHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "food item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// POST /api/food-items
func (h *FoodItemHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, uploaded, err := h.readFoodItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Service.Create(r.Context(), actor.UserID, req.input())
	if err != nil {
		h.discardImage(r.Context(), uploaded)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// PUT /api/food-items/{id}
func (h *FoodItemHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "food item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, uploaded, err := h.readFoodItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Service.Update(r.Context(), actor.UserID, id, req.patch())
	if err != nil {
		h.discardImage(r.Context(), uploaded)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DELETE /api/food-items/{id}
func (h *FoodItemHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "food item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), actor.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Food item deleted")
}
