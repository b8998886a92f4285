package actor

import "time"

type Role string

const (
	RoleVendor  Role = "vendor"
	RolePic     Role = "pic"
	RoleDireksi Role = "direksi"
)

// User is the domain representation of a registered actor.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the resolved caller handed to the approval engine. DisplayName
// is denormalized into every history entry at write time.
type Identity struct {
	ActorID     string
	Role        Role
	DisplayName string
}

// RegisterRequest contains actor registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains actor login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
