// server/internal/models/facility.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// FacilitySpecs mirrors the "facilities" sub-document of a cold storage:
// capacity counters plus the physical characteristics of the site.
type FacilitySpecs struct {
	TotalCapacity     int64   `bson:"totalCapacity" json:"totalCapacity"`
	AvailableCapacity int64   `bson:"availableCapacity" json:"availableCapacity"`
	Temperature       float64 `bson:"temperature" json:"temperature"`
	Humidity          float64 `bson:"humidity" json:"humidity"`
	Ventilation       bool    `bson:"ventilation" json:"ventilation"`
	Monitoring        bool    `bson:"monitoring" json:"monitoring"`
}

type Service struct {
	Name        string  `bson:"name" json:"name"`
	Description string  `bson:"description" json:"description"`
	Price       float64 `bson:"price" json:"price"`
	Unit        string  `bson:"unit" json:"unit"`
}

// Pricing là bảng giá của cơ sở. PerUnitPerDay tính theo một đơn vị sức chứa mỗi ngày.
type Pricing struct {
	BaseRate      float64 `bson:"baseRate" json:"baseRate"`
	PerUnitPerDay float64 `bson:"perUnitPerDay" json:"perUnitPerDay"`
	MinimumPeriod int     `bson:"minimumPeriod" json:"minimumPeriod"`
}

// StatusChange is one entry of a booking's history array.
type StatusChange struct {
	Status BookingStatus      `bson:"status" json:"status"`
	At     time.Time          `bson:"at" json:"at"`
	By     primitive.ObjectID `bson:"by" json:"by"`
}

type Booking struct {
	ID                  primitive.ObjectID `bson:"_id" json:"id"`
	User                primitive.ObjectID `bson:"user" json:"user"`
	Crop                string             `bson:"crop" json:"crop"`
	Quantity            int64              `bson:"quantity" json:"quantity"`
	StartDate           time.Time          `bson:"startDate" json:"startDate"`
	EndDate             time.Time          `bson:"endDate" json:"endDate"`
	Status              BookingStatus      `bson:"status" json:"status"`
	Cost                float64            `bson:"cost" json:"cost"`
	SpecialInstructions string             `bson:"specialInstructions,omitempty" json:"specialInstructions,omitempty"`
	History             []StatusChange     `bson:"history" json:"history"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Facility is a cold-storage site. The embedded bookings and the capacity
// counters form one aggregate; Version guards every write to it.
type Facility struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner     primitive.ObjectID `bson:"owner" json:"owner"`
	Name      string             `bson:"name" json:"name"`
	Location  Location           `bson:"location" json:"location"`
	Specs     FacilitySpecs      `bson:"facilities" json:"facilities"`
	Services  []Service          `bson:"services" json:"services"`
	Pricing   Pricing            `bson:"pricing" json:"pricing"`
	Bookings  []Booking          `bson:"bookings" json:"bookings"`
	Ratings   Ratings            `bson:"ratings" json:"ratings"`
	Images    []string           `bson:"images" json:"images"`
	Documents []MediaPointer     `bson:"documents" json:"documents"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	Version   int64              `bson:"version" json:"version"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FacilitySummary is the minimal facility identity returned next to a user's bookings.
type FacilitySummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Location Location           `bson:"location" json:"location"`
}
