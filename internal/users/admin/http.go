// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/bazaar/internal/platform/middleware"
	requestutil "github.com/taibuivan/bazaar/internal/platform/request"
	"github.com/taibuivan/bazaar/internal/platform/respond"
	"github.com/taibuivan/bazaar/internal/platform/sec"
	"github.com/taibuivan/bazaar/internal/platform/validate"
	"github.com/taibuivan/bazaar/internal/users/auth"
	"github.com/taibuivan/bazaar/pkg/pagination"
)

// MsgStatusChanged is returned after a successful moderation.
const MsgStatusChanged = "User status updated"

// Handler implements the /api/v1/admin endpoints.
//
// # Security
//
// Every route requires a bearer token of an admin account.
type Handler struct {
	adminService *Service
	verifier     middleware.AccessTokenVerifier
	loader       middleware.AccountLoader
}

// NewHandler constructs a new admin [Handler].
func NewHandler(service *Service, verifier middleware.AccessTokenVerifier, loader middleware.AccountLoader) *Handler {
	return &Handler{adminService: service, verifier: verifier, loader: loader}
}

// Routes returns a [chi.Router] configured with moderation endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.Authenticate(handler.verifier, handler.loader))
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/users", handler.listUsers)
	router.Post("/users", handler.changeStatus)

	return router
}

type changeStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type changeStatusResponse struct {
	Message string       `json:"message"`
	User    auth.Profile `json:"user"`
}

/*
GET /api/v1/admin/users.

Request:
  - Query: status (active|banned), page, limit

Response:
  - 200: {data, meta}
  - 400: Invalid status
  - 401, 403: Not an admin
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	var status *auth.Status
	if raw := query.Get("status"); raw != "" {
		parsed := auth.Status(raw)
		status = &parsed
	}

	users, meta, err := handler.adminService.ListUsers(request.Context(), status, pagination.FromQuery(query))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, meta)
}

/*
POST /api/v1/admin/users.

Request:
  - Body: changeStatusRequest (id, status)

Response:
  - 200: {message, user}
  - 400: Missing fields, malformed id, invalid status, or self-moderation
  - 401, 403: Not an admin
  - 404: User not found
*/
func (handler *Handler) changeStatus(writer http.ResponseWriter, request *http.Request) {
	adminID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changeStatusRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("id", input.ID).Required("status", input.Status)
	if err := validator.ErrWithMessage(validate.MessageAllFieldsRequired); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator.UUID("id", input.ID).
		OneOf("status", input.Status, string(auth.StatusActive), string(auth.StatusBanned))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.adminService.ChangeStatus(request.Context(), adminID, input.ID, auth.Status(input.Status))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, changeStatusResponse{Message: MsgStatusChanged, User: user.Profile()})
}
