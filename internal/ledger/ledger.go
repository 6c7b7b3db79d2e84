// Package ledger keeps the capacity counter and the embedded booking list of
// every cold-storage facility consistent.
//
// Each Facility is one aggregate. Every mutation reads the aggregate, applies
// the change to that copy and writes it back with a compare-and-swap on
// Facility.Version; a lost race re-reads and tries again, a bounded number of
// times.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"krishisetu-api-server/internal/logger"
	"krishisetu-api-server/internal/metrics"
	"krishisetu-api-server/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxRetries = 3

type Options struct {
	MaxRetries int
	Now        func() time.Time
}

type Ledger struct {
	store      FacilityStore
	maxRetries int
	now        func() time.Time
	tracer     trace.Tracer
}

func New(store FacilityStore, opts Options) *Ledger {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:      store,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		tracer:     otel.Tracer("krishisetu/ledger"),
	}
}

// BookingRequest is the input of CreateBooking.
type BookingRequest struct {
	FacilityID          primitive.ObjectID
	UserID              primitive.ObjectID
	Crop                string
	Quantity            int64
	StartDate           time.Time
	EndDate             time.Time
	SpecialInstructions string
}

func (r BookingRequest) validate() error {
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0: %w", ErrValidation)
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("startDate and endDate are required: %w", ErrValidation)
	}
	if !r.EndDate.After(r.StartDate) {
		return fmt.Errorf("endDate must be after startDate: %w", ErrValidation)
	}
	if strings.TrimSpace(r.Crop) == "" {
		return fmt.Errorf("crop is required: %w", ErrValidation)
	}
	return nil
}

// BookingReceipt is a freshly created booking with the facility it was made at.
type BookingReceipt struct {
	models.Booking
	FacilityID primitive.ObjectID `json:"facilityId"`
	Facility   string             `json:"facility"`
	Owner      primitive.ObjectID `json:"-"`
	TotalCost  float64            `json:"totalCost"`
}

// CreateBooking reserves req.Quantity of the facility's capacity for a new
// pending booking. The decrement and the booking are written together or not at all.
func (l *Ledger) CreateBooking(ctx context.Context, req BookingRequest) (*BookingReceipt, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.create_booking", trace.WithAttributes(
		attribute.String("facility.id", req.FacilityID.Hex()),
		attribute.Int64("booking.quantity", req.Quantity),
	))
	defer span.End()

	if err := req.validate(); err != nil {
		metrics.BookingRejections.WithLabelValues("validation").Inc()
		return nil, err
	}

	var receipt *BookingReceipt
	_, err := l.update(ctx, req.FacilityID, func(f *models.Facility) error {
		if !f.IsActive {
			return fmt.Errorf("facility is not accepting bookings: %w", ErrValidation)
		}
		if req.Quantity > f.Specs.AvailableCapacity {
			return fmt.Errorf("requested %d, available %d: %w", req.Quantity, f.Specs.AvailableCapacity, ErrInsufficientCapacity)
		}

		now := l.now()
		booking := models.Booking{
			ID:                  primitive.NewObjectID(),
			User:                req.UserID,
			Crop:                strings.TrimSpace(req.Crop),
			Quantity:            req.Quantity,
			StartDate:           req.StartDate,
			EndDate:             req.EndDate,
			Status:              models.BookingPending,
			Cost:                Cost(req.StartDate, req.EndDate, req.Quantity, f.Pricing.PerUnitPerDay),
			SpecialInstructions: req.SpecialInstructions,
			History:             []models.StatusChange{{Status: models.BookingPending, At: now, By: req.UserID}},
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		f.Bookings = append(f.Bookings, booking)
		f.Specs.AvailableCapacity -= req.Quantity

		receipt = &BookingReceipt{
			Booking:    booking,
			FacilityID: f.ID,
			Facility:   f.Name,
			Owner:      f.Owner,
			TotalCost:  booking.Cost,
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCapacity):
			metrics.BookingRejections.WithLabelValues("insufficient_capacity").Inc()
		case errors.Is(err, ErrConcurrentModification):
			metrics.BookingRejections.WithLabelValues("contention").Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	metrics.BookingsCreated.Inc()
	return receipt, nil
}

// TransitionBookingStatus moves a booking to newStatus on behalf of actor,
// who must own the facility. Entering a terminal status gives the booking's
// quantity back to the facility; that happens once per booking.
func (l *Ledger) TransitionBookingStatus(ctx context.Context, facilityID, bookingID primitive.ObjectID, newStatus models.BookingStatus, actor primitive.ObjectID) (*models.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.transition_booking", trace.WithAttributes(
		attribute.String("facility.id", facilityID.Hex()),
		attribute.String("booking.id", bookingID.Hex()),
		attribute.String("booking.status", string(newStatus)),
	))
	defer span.End()

	if _, ok := stage[newStatus]; !ok {
		return nil, fmt.Errorf("unknown booking status %q: %w", newStatus, ErrValidation)
	}

	var result models.Booking
	_, err := l.update(ctx, facilityID, func(f *models.Facility) error {
		if f.Owner != actor {
			return fmt.Errorf("only the facility owner may update bookings: %w", ErrNotAuthorized)
		}
		idx := bookingIndex(f, bookingID)
		if idx < 0 {
			return fmt.Errorf("booking %s: %w", bookingID.Hex(), ErrNotFound)
		}
		b := &f.Bookings[idx]
		if err := checkTransition(b.Status, newStatus); err != nil {
			return err
		}
		if b.Status == newStatus {
			result = *b
			return errNoChange
		}

		if IsTerminal(newStatus) {
			f.Specs.AvailableCapacity += b.Quantity
		}
		now := l.now()
		b.Status = newStatus
		b.UpdatedAt = now
		b.History = append(b.History, models.StatusChange{Status: newStatus, At: now, By: actor})
		result = *b
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(newStatus)).Inc()
	return &result, nil
}

// ListBookingsForUser returns every booking made by user, each with the
// identity of its facility. Other users' bookings are never included.
func (l *Ledger) ListBookingsForUser(ctx context.Context, user primitive.ObjectID) ([]UserBooking, error) {
	bookings, err := l.store.FindUserBookings(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("find bookings for user %s: %w", user.Hex(), err)
	}
	if bookings == nil {
		bookings = []UserBooking{}
	}
	return bookings, nil
}

// ListBookingsForOwner returns all bookings of a facility to its owner.
func (l *Ledger) ListBookingsForOwner(ctx context.Context, facilityID, owner primitive.ObjectID) ([]models.Booking, error) {
	f, err := l.store.Get(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Owner != owner {
		return nil, fmt.Errorf("only the facility owner may list its bookings: %w", ErrNotAuthorized)
	}
	if f.Bookings == nil {
		return []models.Booking{}, nil
	}
	return f.Bookings, nil
}

// update runs the read-mutate-write loop for one facility. mutate works on a
// fresh copy each attempt; returning errNoChange skips the write.
func (l *Ledger) update(ctx context.Context, id primitive.ObjectID, mutate func(*models.Facility) error) (*models.Facility, error) {
	var out *models.Facility
	err := l.retry(ctx, id, func() (bool, error) {
		current, err := l.store.Get(ctx, id)
		if err != nil {
			return false, err
		}

		oldVersion := current.Version
		if err := mutate(current); err != nil {
			if errors.Is(err, errNoChange) {
				out = current
				return true, nil
			}
			return false, err
		}
		if err := CheckCapacity(current); err != nil {
			return false, err
		}

		current.Version = oldVersion + 1
		current.UpdatedAt = l.now()
		ok, err := l.store.ReplaceIfVersion(ctx, current, oldVersion)
		if err != nil {
			return false, fmt.Errorf("write facility %s: %w", id.Hex(), err)
		}
		if ok {
			out = current
		}
		return ok, nil
	})
	return out, err
}

// retry calls attempt until it reports done, fails, or maxRetries attempts
// have lost the version race.
func (l *Ledger) retry(ctx context.Context, id primitive.ObjectID, attempt func() (bool, error)) error {
	for i := 0; i < l.maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := attempt()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		metrics.VersionConflicts.Inc()
		logger.Log.WithFields(logrus.Fields{
			"facility": id.Hex(),
			"attempt":  i + 1,
		}).Debug("facility version moved, retrying")
	}
	return fmt.Errorf("facility %s changed %d times while updating: %w", id.Hex(), l.maxRetries, ErrConcurrentModification)
}

// Reserved sums the quantity of bookings that still hold capacity.
func Reserved(f *models.Facility) int64 {
	var total int64
	for _, b := range f.Bookings {
		if holdsCapacity(b.Status) {
			total += b.Quantity
		}
	}
	return total
}

// CheckCapacity verifies 0 ≤ available ≤ total and available == total − reserved.
func CheckCapacity(f *models.Facility) error {
	total, available := f.Specs.TotalCapacity, f.Specs.AvailableCapacity
	if available < 0 || available > total || available != total-Reserved(f) {
		return fmt.Errorf("facility %s capacity out of balance: total=%d available=%d reserved=%d",
			f.ID.Hex(), total, available, Reserved(f))
	}
	return nil
}

func bookingIndex(f *models.Facility, id primitive.ObjectID) int {
	for i := range f.Bookings {
		if f.Bookings[i].ID == id {
			return i
		}
	}
	return -1
}
