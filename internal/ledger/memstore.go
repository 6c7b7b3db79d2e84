package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"krishisetu-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process FacilityStore. It backs the test suites and
// the "memory" storage driver used for local runs without MongoDB.
type MemoryStore struct {
	mu         sync.RWMutex
	facilities map[primitive.ObjectID]*models.Facility
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{facilities: make(map[primitive.ObjectID]*models.Facility)}
}

func (m *MemoryStore) Get(_ context.Context, id primitive.ObjectID) (*models.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.facilities[id]
	if !ok {
		return nil, fmt.Errorf("facility %s: %w", id.Hex(), ErrNotFound)
	}
	return cloneFacility(f), nil
}

func (m *MemoryStore) Insert(_ context.Context, f *models.Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, exists := m.facilities[f.ID]; exists {
		return fmt.Errorf("facility %s already exists", f.ID.Hex())
	}
	m.facilities[f.ID] = cloneFacility(f)
	return nil
}

func (m *MemoryStore) ReplaceIfVersion(_ context.Context, f *models.Facility, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.facilities[f.ID]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	m.facilities[f.ID] = cloneFacility(f)
	return true, nil
}

func (m *MemoryStore) DeleteIfVersion(_ context.Context, id primitive.ObjectID, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.facilities[id]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	delete(m.facilities, id)
	return true, nil
}

func (m *MemoryStore) Find(_ context.Context, filter FacilityFilter) ([]models.Facility, int64, error) {
	m.mu.RLock()
	var matched []models.Facility
	for _, f := range m.facilities {
		if matches(f, filter) {
			matched = append(matched, *cloneFacility(f))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Ratings.Average != matched[j].Ratings.Average {
			return matched[i].Ratings.Average > matched[j].Ratings.Average
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := filter.Skip()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []models.Facility{}, total, nil
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(f *models.Facility, filter FacilityFilter) bool {
	if !f.IsActive {
		return false
	}
	if filter.City != "" && !containsFold(f.Location.City, filter.City) {
		return false
	}
	if filter.State != "" && !containsFold(f.Location.State, filter.State) {
		return false
	}
	if filter.MinCapacity != nil && f.Specs.TotalCapacity < *filter.MinCapacity {
		return false
	}
	if filter.MaxCapacity != nil && f.Specs.TotalCapacity > *filter.MaxCapacity {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (m *MemoryStore) FindByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Facility, error) {
	m.mu.RLock()
	var out []models.Facility
	for _, f := range m.facilities {
		if f.Owner == owner {
			out = append(out, *cloneFacility(f))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindUserBookings(_ context.Context, user primitive.ObjectID) ([]UserBooking, error) {
	m.mu.RLock()
	var out []UserBooking
	for _, f := range m.facilities {
		summary := models.FacilitySummary{ID: f.ID, Name: f.Name, Location: f.Location}
		for _, b := range f.Bookings {
			if b.User != user {
				continue
			}
			b.History = cloneSlice(b.History)
			out = append(out, UserBooking{Facility: summary, Booking: b})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Booking.CreatedAt.After(out[j].Booking.CreatedAt) })
	return out, nil
}

func cloneFacility(f *models.Facility) *models.Facility {
	c := *f
	c.Services = cloneSlice(f.Services)
	c.Images = cloneSlice(f.Images)
	c.Documents = cloneSlice(f.Documents)
	if f.Bookings != nil {
		c.Bookings = make([]models.Booking, len(f.Bookings))
		for i, b := range f.Bookings {
			b.History = cloneSlice(b.History)
			c.Bookings[i] = b
		}
	}
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
