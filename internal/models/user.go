package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleFarmer      = "farmer"
	RoleBuyer       = "buyer"
	RoleColdStorage = "coldstorage"
	RoleTransporter = "transporter"
	RoleAdmin       = "admin"
)

// User struct matches the document in MongoDB
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone" json:"phone"`
	PasswordHash string             `bson:"password" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Location     Location           `bson:"location" json:"location"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserSummary is what gets "populated" into facility and booking responses.
type UserSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Phone string             `bson:"phone" json:"phone"`
	Email string             `bson:"email,omitempty" json:"email,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Phone: u.Phone, Email: u.Email}
}

// Public drops the contact email.
func (s UserSummary) Public() UserSummary {
	s.Email = ""
	return s
}
