// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the account and credential lifecycle of Bazaar.

It owns the User record and every flow that mutates its credentials:
registration with an emailed one-time code, password login, token renewal,
password reset through single-use hashed links, and password change.

# Architecture

  - user.go: The User entity and its pending-code variants.
  - otp.go: The CodeEngine that issues and checks one-time codes.
  - service.go: Use cases orchestrating store, tokens, codes and notifier.
  - http.go: Transport (chi routes, cookies, JSON payloads).
  - store*.go: Persistence contract and its PostgreSQL implementation.
*/
package auth

import (
	"time"

	"github.com/taibuivan/bazaar/internal/platform/sec"
)

// # Account Status

// Status is the moderation state of an account.
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBanned
}

// # Domain Entities

// PendingCode is an outstanding one-time secret: its stored digest and expiry.
//
// A nil *PendingCode means nothing is pending. Hash and ExpiresAt are always
// set and cleared together.
type PendingCode struct {
	Hash      string
	ExpiresAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (p *PendingCode) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// User represents a registered buyer, seller or admin.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	ExternalID   *string
	Role         sec.UserRole
	Status       Status
	IsVerified   bool
	Verification *PendingCode
	Reset        *PendingCode
	AvatarURL    string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanSignIn reports whether the account holds a usable credential.
func (u *User) CanSignIn() bool {
	return u.PasswordHash != "" || (u.ExternalID != nil && *u.ExternalID != "")
}

// Identity returns the token subject for this account.
func (u *User) Identity() sec.Identity {
	return sec.Identity{UserID: u.ID, Role: u.Role, User: u}
}

// AccountID implements middleware.Account.
func (u *User) AccountID() string { return u.ID }

// AccountRole implements middleware.Account.
func (u *User) AccountRole() sec.UserRole { return u.Role }

// IsBanned implements middleware.Account.
func (u *User) IsBanned() bool { return u.Status == StatusBanned }

// IsEmailVerified implements middleware.Account.
func (u *User) IsEmailVerified() bool { return u.IsVerified }

// # Projections

// Profile is the client-safe view of a [User]. Secrets and pending codes never leave the server.
type Profile struct {
	ID         string       `json:"_id"`
	Username   string       `json:"username"`
	Email      string       `json:"email"`
	Avatar     string       `json:"avatar"`
	Role       sec.UserRole `json:"role"`
	Status     Status       `json:"status"`
	IsVerified bool         `json:"isVerified"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Profile projects the user for API responses.
func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Avatar:     u.AvatarURL,
		Role:       u.Role,
		Status:     u.Status,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

// # Field Identifiers

// JSON field names used in request payloads and validation details.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldNewPassword     = "newPassword"
	FieldOTP             = "otp"
	FieldToken           = "token"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldNewAccessToken  = "newAccessToken"
)
