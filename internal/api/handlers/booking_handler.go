package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"krishisetu-api-server/internal/export"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/logger"
	"krishisetu-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CreateBookingRequest struct {
	Crop                string `json:"crop" binding:"required"`
	Quantity            int64  `json:"quantity" binding:"required,gt=0"`
	StartDate           string `json:"startDate" binding:"required"`
	EndDate             string `json:"endDate" binding:"required"`
	SpecialInstructions string `json:"specialInstructions"`
}

// parseBookingDate accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseBookingDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", ledger.ErrValidation, field)
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required,bookingstatus"`
}

// CreateBooking giữ chỗ trong kho lạnh cho người dùng đang đăng nhập.
func (h *FacilityHandler) CreateBooking(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parseBookingDate("startDate", req.StartDate)
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := parseBookingDate("endDate", req.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	receipt, err := h.Ledger.CreateBooking(c.Request.Context(), ledger.BookingRequest{
		FacilityID:          id,
		UserID:              user,
		Crop:                req.Crop,
		Quantity:            req.Quantity,
		StartDate:           start,
		EndDate:             end,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify(receipt.Owner, socket.EventBookingCreated, receipt)
	c.JSON(http.StatusCreated, gin.H{"message": "Booking created successfully", "booking": receipt})
}

// UpdateBookingStatus lets the facility owner move a booking through its lifecycle.
func (h *FacilityHandler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	bookingID, err := objectIDParam(c, "bookingId")
	if err != nil {
		respondError(c, err)
		return
	}
	var req UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.Ledger.TransitionBookingStatus(c.Request.Context(), id, bookingID, status, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify(booking.User, socket.EventBookingStatusChanged, gin.H{"facilityId": id, "booking": booking})
	c.JSON(http.StatusOK, gin.H{"message": "Booking status updated successfully", "booking": booking})
}

func (h *FacilityHandler) GetMyBookings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	bookings, err := h.Ledger.ListBookingsForUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GetFacilityBookings lists every booking of a facility to its owner.
func (h *FacilityHandler) GetFacilityBookings(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	bookings, err := h.Ledger.ListBookingsForOwner(c.Request.Context(), id, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.populateBookings(c.Request.Context(), bookings, true))
}

// ExportFacilityBookings trả về file Excel chứa toàn bộ booking của kho lạnh.
func (h *FacilityHandler) ExportFacilityBookings(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := h.Ledger.CheckOwner(c.Request.Context(), id, owner)
	if err != nil {
		respondError(c, err)
		return
	}

	names := make(map[string]string, len(f.Bookings))
	for _, b := range h.populateBookings(c.Request.Context(), f.Bookings, true) {
		names[b.User.ID.Hex()] = b.User.Name
	}
	buf, err := export.Bookings(f.Name, f.Bookings, names)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("bookings-%s-%s.xlsx", id.Hex(), time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

// notify is best effort: a failed push never fails the request.
func (h *FacilityHandler) notify(user primitive.ObjectID, event string, data any) {
	if h.Hub == nil {
		return
	}
	if err := h.Hub.Notify(user.Hex(), event, data); err != nil {
		logger.Log.WithFields(logrus.Fields{"user_id": user.Hex(), "event": event}).WithError(err).Warn("notification not delivered")
	}
}
