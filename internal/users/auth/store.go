// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/bazaar/pkg/pagination"
)

// # User Data Access

// UserFilter narrows [UserRepository.List]. A nil field means no constraint.
type UserFilter struct {
	Status *Status
}

// UserRepository defines the data access contract for user accounts.
//
// Every call reads or writes one record atomically. Concurrent writers of the same
// record are last-write-wins.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound when absent, or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given canonical email.

		Parameters:
		  - context: context.Context
		  - email: string (already normalized)

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound when absent, or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByResetTokenHash returns the account whose pending reset digest matches
		and has not expired at now. Both conditions are checked in one query.

		Parameters:
		  - context: context.Context
		  - digest: string (SHA-256 hex of the emailed token)
		  - now: time.Time

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound when nothing matches, or database failures
	*/
	FindByResetTokenHash(context context.Context, digest string, now time.Time) (*User, error)

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: ErrUserExists on a duplicate email, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Save writes every mutable field of the account and bumps its updatedAt.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: dberr.ErrNotFound if the row is gone, or persistence failures
	*/
	Save(context context.Context, user *User) error

	/*
		List returns one page of accounts matching filter, newest first, plus the
		total count of matching rows.

		Parameters:
		  - context: context.Context
		  - filter: UserFilter
		  - page: pagination.Params

		Returns:
		  - []*User: The page
		  - int: Total matching rows
		  - error: Database failures
	*/
	List(context context.Context, filter UserFilter, page pagination.Params) ([]*User, int, error)
}
