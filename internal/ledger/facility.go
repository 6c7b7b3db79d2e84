package ledger

import (
	"context"
	"fmt"
	"strings"

	"krishisetu-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FacilityDraft is what an owner submits to register a facility.
type FacilityDraft struct {
	Name      string                `json:"name" binding:"required"`
	Location  models.Location       `json:"location"`
	Specs     models.FacilitySpecs  `json:"facilities"`
	Services  []models.Service      `json:"services"`
	Pricing   models.Pricing        `json:"pricing"`
	Images    []string              `json:"images"`
	Documents []models.MediaPointer `json:"documents"`
}

// SpecsPatch changes the physical side of a facility. AvailableCapacity is
// never set directly; it follows from TotalCapacity and the live bookings.
type SpecsPatch struct {
	TotalCapacity *int64   `json:"totalCapacity"`
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Ventilation   *bool    `json:"ventilation"`
	Monitoring    *bool    `json:"monitoring"`
}

// FacilityPatch is an owner edit; nil fields stay as they are.
type FacilityPatch struct {
	Name      *string                `json:"name"`
	Location  *models.Location       `json:"location"`
	Specs     *SpecsPatch            `json:"facilities"`
	Services  *[]models.Service      `json:"services"`
	Pricing   *models.Pricing        `json:"pricing"`
	Images    *[]string              `json:"images"`
	Documents *[]models.MediaPointer `json:"documents"`
	IsActive  *bool                  `json:"isActive"`
}

func validatePricing(p models.Pricing) error {
	if p.BaseRate < 0 || p.PerUnitPerDay < 0 || p.MinimumPeriod < 0 {
		return fmt.Errorf("pricing values cannot be negative: %w", ErrValidation)
	}
	return nil
}

func (l *Ledger) CreateFacility(ctx context.Context, owner primitive.ObjectID, d FacilityDraft) (*models.Facility, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if d.Specs.TotalCapacity < 0 {
		return nil, fmt.Errorf("totalCapacity cannot be negative: %w", ErrValidation)
	}
	if err := validatePricing(d.Pricing); err != nil {
		return nil, err
	}

	now := l.now()
	f := &models.Facility{
		ID:        primitive.NewObjectID(),
		Owner:     owner,
		Name:      strings.TrimSpace(d.Name),
		Location:  d.Location,
		Specs:     d.Specs,
		Services:  nonNil(d.Services),
		Pricing:   d.Pricing,
		Bookings:  []models.Booking{},
		Images:    nonNil(d.Images),
		Documents: nonNil(d.Documents),
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.Specs.AvailableCapacity = f.Specs.TotalCapacity

	if err := l.store.Insert(ctx, f); err != nil {
		return nil, fmt.Errorf("insert facility: %w", err)
	}
	return f, nil
}

func (l *Ledger) GetFacility(ctx context.Context, id primitive.ObjectID) (*models.Facility, error) {
	return l.store.Get(ctx, id)
}

// ListFacilities returns one page of active facilities, best rated first, and the total match count.
func (l *Ledger) ListFacilities(ctx context.Context, filter FacilityFilter) ([]models.Facility, int64, error) {
	filter = filter.Normalize()
	facilities, total, err := l.store.Find(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("find facilities: %w", err)
	}
	if facilities == nil {
		facilities = []models.Facility{}
	}
	return facilities, total, nil
}

func (l *Ledger) ListOwnerFacilities(ctx context.Context, owner primitive.ObjectID) ([]models.Facility, error) {
	facilities, err := l.store.FindByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("find facilities of owner %s: %w", owner.Hex(), err)
	}
	if facilities == nil {
		facilities = []models.Facility{}
	}
	return facilities, nil
}

// UpdateFacility applies an owner edit. Shrinking totalCapacity below what
// live bookings hold is rejected.
func (l *Ledger) UpdateFacility(ctx context.Context, id, actor primitive.ObjectID, p FacilityPatch) (*models.Facility, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", ErrValidation)
	}
	if p.Pricing != nil {
		if err := validatePricing(*p.Pricing); err != nil {
			return nil, err
		}
	}

	return l.update(ctx, id, func(f *models.Facility) error {
		if f.Owner != actor {
			return fmt.Errorf("only the facility owner may edit it: %w", ErrNotAuthorized)
		}
		if p.Name != nil {
			f.Name = strings.TrimSpace(*p.Name)
		}
		if p.Location != nil {
			f.Location = *p.Location
		}
		if s := p.Specs; s != nil {
			if s.TotalCapacity != nil {
				reserved := Reserved(f)
				if *s.TotalCapacity < reserved {
					return fmt.Errorf("totalCapacity %d is below the %d units already booked: %w", *s.TotalCapacity, reserved, ErrValidation)
				}
				f.Specs.TotalCapacity = *s.TotalCapacity
				f.Specs.AvailableCapacity = *s.TotalCapacity - reserved
			}
			if s.Temperature != nil {
				f.Specs.Temperature = *s.Temperature
			}
			if s.Humidity != nil {
				f.Specs.Humidity = *s.Humidity
			}
			if s.Ventilation != nil {
				f.Specs.Ventilation = *s.Ventilation
			}
			if s.Monitoring != nil {
				f.Specs.Monitoring = *s.Monitoring
			}
		}
		if p.Services != nil {
			f.Services = nonNil(*p.Services)
		}
		if p.Pricing != nil {
			f.Pricing = *p.Pricing
		}
		if p.Images != nil {
			f.Images = nonNil(*p.Images)
		}
		if p.Documents != nil {
			f.Documents = nonNil(*p.Documents)
		}
		if p.IsActive != nil {
			f.IsActive = *p.IsActive
		}
		return nil
	})
}

// DeleteFacility removes a facility that has never been booked. A facility
// that bookings reference is deactivated instead; softDeleted reports which.
func (l *Ledger) DeleteFacility(ctx context.Context, id, actor primitive.ObjectID) (softDeleted bool, err error) {
	err = l.retry(ctx, id, func() (bool, error) {
		f, err := l.store.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if f.Owner != actor {
			return false, fmt.Errorf("only the facility owner may delete it: %w", ErrNotAuthorized)
		}

		if len(f.Bookings) == 0 {
			softDeleted = false
			return l.store.DeleteIfVersion(ctx, id, f.Version)
		}

		softDeleted = true
		if !f.IsActive {
			return true, nil
		}
		expected := f.Version
		f.IsActive = false
		f.Version = expected + 1
		f.UpdatedAt = l.now()
		return l.store.ReplaceIfVersion(ctx, f, expected)
	})
	return softDeleted, err
}

// RateFacility records a 1–5 score from a user who has completed a booking there.
func (l *Ledger) RateFacility(ctx context.Context, id, user primitive.ObjectID, score int) (*models.Ratings, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", ErrValidation)
	}

	f, err := l.update(ctx, id, func(f *models.Facility) error {
		completed := false
		for _, b := range f.Bookings {
			if b.User == user && b.Status == models.BookingCompleted {
				completed = true
				break
			}
		}
		if !completed {
			return fmt.Errorf("only users with a completed booking may rate this facility: %w", ErrNotAuthorized)
		}
		r := &f.Ratings
		r.Average = (r.Average*float64(r.Count) + float64(score)) / float64(r.Count+1)
		r.Count++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &f.Ratings, nil
}

// AddImage appends an uploaded image URL to the facility gallery.
func (l *Ledger) AddImage(ctx context.Context, id, actor primitive.ObjectID, url string) (*models.Facility, error) {
	return l.update(ctx, id, func(f *models.Facility) error {
		if f.Owner != actor {
			return fmt.Errorf("only the facility owner may add images: %w", ErrNotAuthorized)
		}
		f.Images = append(f.Images, url)
		return nil
	})
}

// CheckOwner reports ErrNotAuthorized unless actor owns the facility.
func (l *Ledger) CheckOwner(ctx context.Context, id, actor primitive.ObjectID) (*models.Facility, error) {
	f, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Owner != actor {
		return nil, fmt.Errorf("not the facility owner: %w", ErrNotAuthorized)
	}
	return f, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
