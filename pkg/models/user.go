package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a registered customer. Password holds the bcrypt hash and is
// never serialized.
type User struct {
	ID                bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Username          string        `json:"username" bson:"username" validate:"required,min=2,max=50"`
	Email             string        `json:"email" bson:"email" validate:"required,email"`
	Password          string        `json:"-" bson:"password"`
	ProfilePictureURL string        `json:"profile_picture_url,omitempty" bson:"profile_picture_url,omitempty"`
	CreatedAt         time.Time     `json:"created_at" bson:"created_at"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CustomerAddress stores the single shipping address kept per user.
// Writes are upserts; there is no address list.
type CustomerAddress struct {
	ID     bson.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID bson.ObjectID `json:"user_id" bson:"user_id"`
	Street string        `json:"street" bson:"street,omitempty"`
	City   string        `json:"city" bson:"city,omitempty"`
	State  string        `json:"state" bson:"state,omitempty"`
	Phone  string        `json:"phone" bson:"phone,omitempty"`
}

type UpsertAddressRequest struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Phone  string `json:"phone"`
}
