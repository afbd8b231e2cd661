package models

import (
	"fmt"

	"github.com/elithrar/simple-scrypt"
)

const (
	// RoleAdmin marks venue staff - they decide on requests and manage crates
	RoleAdmin = "admin"
	// RoleSinger marks regular guests - they may file song requests
	RoleSinger = "singer"
)

// User defines a person interacting with the application - either venue staff or a singer
type User struct {
	// Internal user ID
	ID uint `json:"id"`
	// The user name used to log-in
	Name string `json:"name"`
	// The hashed password for authentication
	PasswordHash string `json:"-"`
	// The full user name for display reasons
	FullName string `json:"fullName"`
	// The user's role - see the Role* constants
	Role string `json:"role"`
	// The Expo push token of the user's device, if one has been registered
	ExpoPushToken string `json:"-"`
}

// IsAdmin checks if the user may perform admin-only operations
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary returns the display-ready identity of the user without any credential data
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, FullName: u.FullName}
}

// UserSummary is the shortened identity of a user that is embedded into hydrated requests
type UserSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
}

// SetPassword sets a new password creating a password hash from the incoming password and storing it in the user's
// PasswordHash property
func (u *User) SetPassword(pass string) error {
	hash, err := scrypt.GenerateFromPassword([]byte(pass), scrypt.DefaultParams)
	if err != nil {
		return fmt.Errorf("SetPassword: Error during password hashing: %v", err)
	}
	// The library already uses a string encoding here - so there is no need to encode further
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword checks if the given password corresponds to the hash stored in the user struct.
// It returns an error if the password does not match or an error occurs when loading the password hash from the user
func (u *User) CheckPassword(pass string) error {
	return scrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pass))
}
