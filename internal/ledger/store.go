package ledger

import (
	"context"

	"krishisetu-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FacilityStore persists Facility aggregates. Implementations return copies:
// mutating a returned Facility never changes stored state until it is
// written back through ReplaceIfVersion.
type FacilityStore interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Facility, error)
	Insert(ctx context.Context, f *models.Facility) error
	// ReplaceIfVersion stores f only if the stored copy still has expectedVersion.
	// It reports false, with a nil error, when the version moved or the facility is gone.
	ReplaceIfVersion(ctx context.Context, f *models.Facility, expectedVersion int64) (bool, error)
	DeleteIfVersion(ctx context.Context, id primitive.ObjectID, expectedVersion int64) (bool, error)
	Find(ctx context.Context, filter FacilityFilter) ([]models.Facility, int64, error)
	FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Facility, error)
	FindUserBookings(ctx context.Context, user primitive.ObjectID) ([]UserBooking, error)
}

// FacilityFilter drives the public facility search. Only active facilities match.
type FacilityFilter struct {
	City        string
	State       string
	MinCapacity *int64
	MaxCapacity *int64
	Page        int64
	Limit       int64
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Normalize clamps Page to at least 1 and Limit to 1..100, defaulting to 10.
func (f FacilityFilter) Normalize() FacilityFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

func (f FacilityFilter) Skip() int64 {
	return (f.Page - 1) * f.Limit
}

// UserBooking pairs one booking with the identity of the facility holding it.
type UserBooking struct {
	Facility models.FacilitySummary `bson:"facility" json:"facility"`
	Booking  models.Booking         `bson:"booking" json:"booking"`
}
