package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/imaging"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/store"
)

// ItemsHandler handles catalog item endpoints.
type ItemsHandler struct {
	DB  *sql.DB
	Bus *events.Bus
}

type itemRequest struct {
	Name           string          `json:"name"`
	EducationLevel string          `json:"education_level"`
	ItemType       string          `json:"item_type"`
	Size           string          `json:"size"`
	Stock          int             `json:"stock"`
	ForGender      string          `json:"for_gender"`
	Price          decimal.Decimal `json:"price"`
}

func (req itemRequest) validate() string {
	switch {
	case req.Name == "":
		return "name required"
	case req.EducationLevel == "":
		return "education_level required"
	case req.Stock < 0:
		return "stock must not be negative"
	case req.Price.IsNegative():
		return "price must not be negative"
	case req.ForGender != "" && !model.ValidGender(req.ForGender):
		return "invalid for_gender"
	}
	return ""
}

func (req itemRequest) input() store.ItemInput {
	gender := req.ForGender
	if gender == "" {
		gender = model.GenderUnisex
	}
	return store.ItemInput{
		Name:           req.Name,
		EducationLevel: req.EducationLevel,
		ItemType:       req.ItemType,
		Size:           req.Size,
		Stock:          req.Stock,
		ForGender:      gender,
		Price:          req.Price,
	}
}

func (h *ItemsHandler) published(id int64) {
	ev := events.New(events.ItemUpdated)
	ev.ItemID = id
	publish(h.Bus, ev)
}

// List handles GET /api/items[?userEducationLevel=].
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("userEducationLevel")
	items, err := store.ListItems(r.Context(), h.DB, level)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.input())
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item created", "user", claims.Username, "item", item.Name, "size", item.Size)
	h.published(item.ID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, id, req.input()); err != nil {
		slog.Error("failed to update item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	item, _ := store.GetItem(r.Context(), h.DB, id)
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	h.published(id)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "item_id", id)
	h.published(id)
	jsonMessage(w, http.StatusOK, "item deleted")
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to process image")
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	h.published(id)
	jsonMessage(w, http.StatusOK, "image uploaded")
}

// GetImage handles GET /api/items/{id}/image[?size=thumb].
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	if r.URL.Query().Get("size") == "thumb" {
		thumb, err := imaging.Thumbnail(data)
		if err != nil {
			slog.Error("failed to make thumbnail", "item_id", id, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to get image")
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
