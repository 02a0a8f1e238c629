// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns used by hand-written SQL.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table                 string
	ID                    string
	Username              string
	Email                 string
	Password              string
	ExternalID            string
	Role                  string
	Status                string
	IsVerified            string
	VerificationHash      string
	VerificationExpiresAt string
	ResetHash             string
	ResetExpiresAt        string
	AvatarURL             string
	Bio                   string
	CreatedAt             string
	UpdatedAt             string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:                 "users.account",
	ID:                    "id",
	Username:              "username",
	Email:                 "email",
	Password:              "passwordhash",
	ExternalID:            "externalid",
	Role:                  "role",
	Status:                "status",
	IsVerified:            "isverified",
	VerificationHash:      "verificationhash",
	VerificationExpiresAt: "verificationexpiresat",
	ResetHash:             "resethash",
	ResetExpiresAt:        "resetexpiresat",
	AvatarURL:             "avatarurl",
	Bio:                   "bio",
	CreatedAt:             "createdat",
	UpdatedAt:             "updatedat",
}

// Columns returns all columns in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.Password, t.ExternalID, t.Role, t.Status,
		t.IsVerified, t.VerificationHash, t.VerificationExpiresAt,
		t.ResetHash, t.ResetExpiresAt, t.AvatarURL, t.Bio, t.CreatedAt, t.UpdatedAt,
	}
}

// SelectList returns the comma-separated column list for SELECT and RETURNING clauses.
func (t UserAccountTable) SelectList() string {
	return strings.Join(t.Columns(), ", ")
}
