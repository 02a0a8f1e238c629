// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package admin implements account moderation for administrators.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
	"github.com/taibuivan/bazaar/internal/platform/dberr"
	"github.com/taibuivan/bazaar/internal/users/auth"
	"github.com/taibuivan/bazaar/pkg/pagination"
)

var (
	ErrSelfModeration = apperr.BadRequest("You cannot change your own status")
	ErrInvalidStatus  = apperr.ValidationError("Invalid status",
		apperr.FieldError{Field: "status", Message: "Must be one of: active, banned"})
)

// # Service Layer

// Service lists and moderates user accounts.
type Service struct {
	userRepository auth.UserRepository
	logger         *slog.Logger
}

// NewService constructs a new [Service] over the shared account store.
func NewService(userRepo auth.UserRepository, logger *slog.Logger) *Service {
	return &Service{userRepository: userRepo, logger: logger}
}

/*
ListUsers returns one page of accounts, optionally filtered by status.

Parameters:
  - context: context.Context
  - status: *auth.Status (nil for all)
  - page: pagination.Params

Returns:
  - []auth.Profile: Client-safe projections
  - pagination.Meta: Paging metadata
  - error: ErrInvalidStatus or storage failures
*/
func (service *Service) ListUsers(context context.Context, status *auth.Status, page pagination.Params) ([]auth.Profile, pagination.Meta, error) {
	if status != nil && !status.Valid() {
		return nil, pagination.Meta{}, ErrInvalidStatus
	}

	users, total, err := service.userRepository.List(context, auth.UserFilter{Status: status}, page)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("admin_service_list_users_failed: %w", err)
	}

	profiles := make([]auth.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	return profiles, pagination.NewMeta(page, total), nil
}

/*
ChangeStatus bans or reinstates an account.

Parameters:
  - context: context.Context
  - adminID: string (the caller)
  - userID: string
  - status: auth.Status

Returns:
  - *auth.User: The updated account
  - error: ErrSelfModeration, ErrInvalidStatus, auth.ErrUserNotFound, or storage failures
*/
func (service *Service) ChangeStatus(context context.Context, adminID, userID string, status auth.Status) (*auth.User, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if userID == adminID {
		return nil, ErrSelfModeration
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("admin_service_find_user_failed: %w", err)
	}

	if user.Status == status {
		return user, nil
	}

	user.Status = status
	if err := service.userRepository.Save(context, user); err != nil {
		return nil, fmt.Errorf("admin_service_change_status_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_status_changed",
		slog.String("admin_id", adminID),
		slog.String("user_id", userID),
		slog.String("status", string(status)),
	)
	return user, nil
}
