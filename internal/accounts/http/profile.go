package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// ProfileHandler serves the caller's profile picture.
type ProfileHandler struct {
	Lifecycle *service.LifecycleService
	Profiles  *service.ProfileService
}

// HandleUpload handles PUT /v1/users/me/profile-picture
//
//	@Summary		Upload profile picture
//	@Description	Stores a JPEG or PNG as the caller's profile picture.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"INVALID_FILE_TYPE"
//	@Failure		413		{object}	authsdk.APIError	"FILE_TOO_LARGE"
//	@Failure		503		{object}	authsdk.APIError	"STORAGE_NOT_CONFIGURED"
//	@Router			/v1/users/me/profile-picture [put].
func (h *ProfileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, files.MaxUploadSize+(64<<10))
	if err := r.ParseMultipartForm(files.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			authsdk.ErrFileTooLarge.WriteError(w)
			return
		}
		authsdk.ErrInvalidRequest.WithDescription("expected a multipart form with a file field").WriteError(w)
		return
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		authsdk.ErrInvalidRequest.WithDescription("missing file field").WriteError(w)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		authsdk.ErrInvalidRequest.WithDescription("failed to read file").WriteError(w)
		return
	}

	u, err := currentUser(h.Lifecycle, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	updated, err := h.Profiles.UploadPicture(r.Context(), u, hdr.Filename, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// HandleGet handles GET /v1/users/me/profile-picture
//
//	@Summary		Profile picture URL
//	@Description	Returns a read URL for the caller's picture, valid for 30 minutes.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProfilePictureResponse
//	@Failure		404	{object}	authsdk.APIError	"NO_PROFILE_PICTURE"
//	@Router			/v1/users/me/profile-picture [get].
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(h.Lifecycle, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	url, err := h.Profiles.PictureURL(r.Context(), u)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfilePictureResponse{URL: url})
}
