package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// UsersHandler serves registration and account reads and updates.
type UsersHandler struct {
	Lifecycle *service.LifecycleService
}

// HandleRegister handles POST /v1/register
//
//	@Summary		Register a user
//	@Description	Creates an account and sends the welcome email. Superuser only.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"REGISTER_INVALID_NAME, REGISTER_INVALID_PASSWORD or REGISTER_USER_ALREADY_EXISTS"
//	@Failure		401		{object}	authsdk.APIError	"Invalid or missing access token"
//	@Failure		403		{object}	authsdk.APIError	"Not a superuser"
//	@Router			/v1/register [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	u, err := h.Lifecycle.Register(r.Context(), domain.UserCreate{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		IsActive:    active,
		IsSuperuser: req.IsSuperuser,
		IsVerified:  req.IsVerified,
	})
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrorCodeRegisterInvalidPassword)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleGetMe handles GET /v1/users/me
//
//	@Summary		Current user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.APIError	"Invalid or missing access token"
//	@Router			/v1/users/me [get].
func (h *UsersHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, principalID(r))
}

// HandlePatchMe handles PATCH /v1/users/me
//
//	@Summary		Update current user
//	@Description	Changes the caller's password. Flag changes require a superuser.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UserUpdateRequest	true	"Changes"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"UPDATE_USER_INVALID_PASSWORD"
//	@Failure		401		{object}	authsdk.APIError	"Invalid or missing access token"
//	@Router			/v1/users/me [patch].
func (h *UsersHandler) HandlePatchMe(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, principalID(r))
}

// HandleGetUser handles GET /v1/users/{id}
//
//	@Summary		Get a user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		403	{object}	authsdk.APIError	"Not a superuser"
//	@Failure		404	{object}	authsdk.APIError	"No such user"
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, r.PathValue("id"))
}

// HandlePatchUser handles PATCH /v1/users/{id}
//
//	@Summary		Update a user
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"User ID"
//	@Param			request	body		authsdk.UserUpdateRequest	true	"Changes"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"UPDATE_USER_INVALID_PASSWORD"
//	@Failure		403		{object}	authsdk.APIError	"Not a superuser"
//	@Failure		404		{object}	authsdk.APIError	"No such user"
//	@Router			/v1/users/{id} [patch].
func (h *UsersHandler) HandlePatchUser(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, r.PathValue("id"))
}

func (h *UsersHandler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.Lifecycle.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *UsersHandler) patch(w http.ResponseWriter, r *http.Request, id string) {
	var req authsdk.UserUpdateRequest
	if !readJSON(w, r, &req) {
		return
	}

	upd := service.UserUpdate{Password: req.Password}
	if p, _ := httpx.PrincipalFromContext(r.Context()); p.Superuser {
		upd.IsActive = req.IsActive
		upd.IsSuperuser = req.IsSuperuser
		upd.IsVerified = req.IsVerified
	}

	u, err := h.Lifecycle.UpdateUser(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrorCodeUpdateUserInvalidPassword)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// principalID is the caller loaded by RequirePrincipal.
func principalID(r *http.Request) string {
	p, _ := httpx.PrincipalFromContext(r.Context())
	return p.ID
}

// currentUser loads the caller's full account.
func currentUser(lifecycle *service.LifecycleService, r *http.Request) (domain.User, error) {
	return lifecycle.GetUser(r.Context(), principalID(r))
}
