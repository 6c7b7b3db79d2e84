// server/internal/api/handlers/facility_handler.go
package handlers

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/logger"
	"krishisetu-api-server/internal/models"
	"krishisetu-api-server/internal/s3"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxImageSize = 5 << 20

// Notifier pushes realtime events to a connected user.
type Notifier interface {
	Notify(userID, event string, data any) error
}

// ImageUploader stores an uploaded file and returns its public URL.
type ImageUploader interface {
	UploadFile(ctx context.Context, file io.Reader, objectKey, contentType string) (string, error)
}

// FacilityHandler serves the /coldstorage routes. Hub and Uploader are optional.
type FacilityHandler struct {
	Ledger   *ledger.Ledger
	Users    database.UserRepository
	Hub      Notifier
	Uploader ImageUploader
}

// bookingView is a booking with its user populated.
type bookingView struct {
	models.Booking
	User models.UserSummary `json:"user"`
}

// facilityView is a facility with owner and booking users populated.
type facilityView struct {
	*models.Facility
	Owner    models.UserSummary `json:"owner"`
	Bookings []bookingView      `json:"bookings"`
}

func (h *FacilityHandler) summaries(ctx context.Context, ids []primitive.ObjectID) map[primitive.ObjectID]models.UserSummary {
	found, err := h.Users.Summaries(ctx, ids)
	if err != nil {
		logger.Log.WithError(err).Warn("could not populate users")
		return map[primitive.ObjectID]models.UserSummary{}
	}
	return found
}

func summaryOf(found map[primitive.ObjectID]models.UserSummary, id primitive.ObjectID) models.UserSummary {
	if s, ok := found[id]; ok {
		return s
	}
	return models.UserSummary{ID: id}
}

// populateBookings fills in booking users. Emails are kept only when the
// caller is the facility owner.
func (h *FacilityHandler) populateBookings(ctx context.Context, bookings []models.Booking, withEmail bool) []bookingView {
	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.User)
	}
	found := h.summaries(ctx, ids)

	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		u := summaryOf(found, b.User)
		if !withEmail {
			u = u.Public()
		}
		out = append(out, bookingView{Booking: b, User: u})
	}
	return out
}

func (h *FacilityHandler) populate(ctx context.Context, f *models.Facility) facilityView {
	owner := h.summaries(ctx, []primitive.ObjectID{f.Owner})
	return facilityView{
		Facility: f,
		Owner:    summaryOf(owner, f.Owner),
		Bookings: h.populateBookings(ctx, f.Bookings, false),
	}
}

// CreateFacility đăng ký một kho lạnh mới cho chủ sở hữu đang đăng nhập.
func (h *FacilityHandler) CreateFacility(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	var req ledger.FacilityDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	f, err := h.Ledger.CreateFacility(c.Request.Context(), owner, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Cold storage created successfully", "coldStorage": f})
}

// GetAllFacilities lists active facilities with filters and pagination.
func (h *FacilityHandler) GetAllFacilities(c *gin.Context) {
	filter := ledger.FacilityFilter{
		City:  strings.TrimSpace(c.Query("city")),
		State: strings.TrimSpace(c.Query("state")),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 10),
	}
	if v, ok := queryOptionalInt(c, "minCapacity"); ok {
		filter.MinCapacity = &v
	}
	if v, ok := queryOptionalInt(c, "maxCapacity"); ok {
		filter.MaxCapacity = &v
	}
	filter = filter.Normalize()

	facilities, total, err := h.Ledger.ListFacilities(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coldStorages": facilities,
		"totalPages":   int64(math.Ceil(float64(total) / float64(filter.Limit))),
		"currentPage":  filter.Page,
		"total":        total,
	})
}

func queryInt(c *gin.Context, key string, def int64) int64 {
	if v, ok := queryOptionalInt(c, key); ok {
		return v
	}
	return def
}

func queryOptionalInt(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetFacilityByID trả về chi tiết kho lạnh, kèm chủ sở hữu và người đặt.
func (h *FacilityHandler) GetFacilityByID(c *gin.Context) {
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := h.Ledger.GetFacility(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.populate(c.Request.Context(), f))
}

func (h *FacilityHandler) GetMyFacilities(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	facilities, err := h.Ledger.ListOwnerFacilities(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facilities)
}

func (h *FacilityHandler) UpdateFacility(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req ledger.FacilityPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	f, err := h.Ledger.UpdateFacility(c.Request.Context(), id, actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cold storage updated successfully", "coldStorage": f})
}

// DeleteFacility xóa kho lạnh; kho đã có booking chỉ bị vô hiệu hóa.
func (h *FacilityHandler) DeleteFacility(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	soft, err := h.Ledger.DeleteFacility(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Cold storage deleted successfully"
	if soft {
		msg = "Cold storage has bookings and was deactivated"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "softDeleted": soft})
}

type RateFacilityRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review"`
}

func (h *FacilityHandler) RateFacility(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req RateFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ratings, err := h.Ledger.RateFacility(c.Request.Context(), id, user, req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rating submitted successfully", "ratings": ratings})
}

// UploadImage nhận file "image" (multipart), đẩy lên S3 và gắn URL vào kho lạnh.
func (h *FacilityHandler) UploadImage(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Image storage is not configured", "error": "unavailable"})
		return
	}
	if _, err := h.Ledger.CheckOwner(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image file is required", "error": "validation"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image must be 5MB or smaller", "error": "validation"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only image uploads are accepted", "error": "validation"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	url, err := h.Uploader.UploadFile(c.Request.Context(), file, s3.ObjectKey("coldstorage/"+id.Hex(), fileHeader.Filename), contentType)
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := h.Ledger.AddImage(c.Request.Context(), id, actor, url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Image uploaded successfully", "url": url, "images": f.Images})
}
