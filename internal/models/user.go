package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the access level of a user. A signup that asked for admin rights
// stays RolePendingAdmin until a superadmin approves it.
type Role string

const (
	RoleStudent      Role = "student"
	RoleAdmin        Role = "admin"
	RolePendingAdmin Role = "pending_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RolePendingAdmin:
		return true
	}
	return false
}

const (
	AuthMethodWallet = "wallet"
	AuthMethodGoogle = "google"
)

// User represents a student or canteen admin in the Food Rescue system.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WalletAddress string             `bson:"wallet_address,omitempty" json:"wallet_address,omitempty"` // lowercase 0x-prefixed
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`                   // lowercase
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	AuthMethod    string             `bson:"auth_method" json:"auth_method"`
	Role          Role               `bson:"role" json:"role"`
	LastActiveAt  time.Time          `bson:"last_active_at" json:"last_active_at"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// UserProfile holds the optional fields a login may supply. Empty fields are
// left untouched on an existing record.
type UserProfile struct {
	Name  string
	Email string
}
