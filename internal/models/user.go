package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role controls what a user may do once authenticated.
type Role string

const (
	RoleUser      Role = "user"
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePublisher, RoleAdmin:
		return true
	}
	return false
}

// PendingToken is the hashed form of a single-use token awaiting its
// follow-up request. A nil *PendingToken on the user means no token is
// pending. ExpiresAt is zero for email confirmation, which does not expire.
type PendingToken struct {
	Hash      string    `bson:"hash"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

// User is a registered account. PasswordHash and OTPSecret are excluded
// from default store reads and never appear in JSON responses.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Role             Role               `bson:"role" json:"role"`
	PasswordHash     string             `bson:"password,omitempty" json:"-"`
	IsEmailConfirmed bool               `bson:"is_email_confirmed" json:"isEmailConfirmed"`
	ConfirmToken     *PendingToken      `bson:"confirm_token,omitempty" json:"-"`
	ResetToken       *PendingToken      `bson:"reset_token,omitempty" json:"-"`
	OTPEnabled       bool               `bson:"otp_enabled" json:"otpEnabled"`
	OTPSecret        string             `bson:"otp_secret,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"createdAt"`
}
