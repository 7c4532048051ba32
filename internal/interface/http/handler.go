package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/user-accounts/internal/domain/account"
	"github.com/yanqian/user-accounts/internal/domain/avatar"
	apperrors "github.com/yanqian/user-accounts/pkg/errors"
)

// multipartOverhead leaves room for boundaries and form headers on top of the
// avatar size limit.
const multipartOverhead = 64 << 10

// maxPatchBytes caps profile update bodies.
const maxPatchBytes = 64 << 10

// Handler wires the HTTP transport to the account service.
type Handler struct {
	accounts account.Service
	policy   avatar.Policy
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(accounts account.Service, policy avatar.Policy, logger *slog.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		policy:   policy,
		logger:   logger.With("component", "http.handler"),
	}
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req account.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	view, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapWriteError(err))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(c *gin.Context) {
	var req account.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_credentials", "unable to login", err))
		return
	}
	resp, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		if apperrors.IsCode(err, "invalid_credentials") {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_credentials", "unable to login", err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "login_failed", "unable to login", err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout revokes the token used for this request.
func (h *Handler) Logout(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), session.Account.ID, session.Token); err != nil {
		abortWithError(c, NewEmptyHTTPError(http.StatusInternalServerError, "logout_failed", err))
		return
	}
	c.Status(http.StatusOK)
}

// LogoutAll revokes every session of the caller.
func (h *Handler) LogoutAll(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.accounts.LogoutAll(c.Request.Context(), session.Account.ID); err != nil {
		abortWithError(c, NewEmptyHTTPError(http.StatusInternalServerError, "logout_failed", err))
		return
	}
	c.Status(http.StatusOK)
}

// Me returns the authenticated account.
func (h *Handler) Me(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, account.ToView(session.Account))
}

// GetByID returns any account by id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, mapLookupError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateMe applies a profile patch to the caller.
func (h *Handler) UpdateMe(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPatchBytes))
	if err != nil {
		message := "failed to read body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "request body is too large"
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", message, err))
		return
	}
	patch, err := account.DecodePatch(body)
	if err != nil {
		abortWithError(c, mapWriteError(err))
		return
	}
	view, err := h.accounts.Update(c.Request.Context(), session.Account.ID, patch)
	if err != nil {
		abortWithError(c, mapWriteError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// UploadAvatar accepts a multipart "avatar" image and stores it transcoded.
func (h *Handler) UploadAvatar(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.policy.MaxBytes+multipartOverhead)
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		message := "avatar file is required"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "file is too large"
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_upload", message, err))
		return
	}
	if err := h.policy.Check(fileHeader.Filename, fileHeader.Size); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_upload", err.Error(), err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_upload", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.policy.MaxBytes+1))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
		return
	}
	if err := h.accounts.SetAvatar(c.Request.Context(), session.Account.ID, data); err != nil {
		if apperrors.IsCode(err, "unsupported_media") {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_upload", errMessage(err), err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to store avatar", err))
		return
	}
	c.Status(http.StatusOK)
}

// DeleteAvatar removes the caller's avatar.
func (h *Handler) DeleteAvatar(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.accounts.ClearAvatar(c.Request.Context(), session.Account.ID); err != nil {
		abortWithError(c, NewEmptyHTTPError(http.StatusInternalServerError, "avatar_failed", err))
		return
	}
	c.Status(http.StatusOK)
}

// GetAvatar serves an account's avatar as PNG.
func (h *Handler) GetAvatar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	image, err := h.accounts.Avatar(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, mapLookupError(err))
		return
	}
	c.Data(http.StatusOK, "image/png", image)
}

// DeleteMe removes the caller's account and returns its last state.
func (h *Handler) DeleteMe(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	view, err := h.accounts.Delete(c.Request.Context(), session.Account.ID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "delete_failed", "failed to delete account", err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteByID removes any account by id.
func (h *Handler) DeleteByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.accounts.Delete(c.Request.Context(), id)
	if err != nil {
		if apperrors.IsCode(err, "not_found") {
			abortWithError(c, NewEmptyHTTPError(http.StatusNotFound, "not_found", err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "delete_failed", "failed to delete account", err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// List returns every account. Diagnostic only.
func (h *Handler) List(c *gin.Context) {
	views, err := h.accounts.List(c.Request.Context())
	if err != nil {
		abortWithError(c, NewEmptyHTTPError(http.StatusInternalServerError, "list_failed", err))
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) session(c *gin.Context) (account.Session, bool) {
	session, ok := getSession(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", unauthorizedMessage, nil))
	}
	return session, ok
}

// parseID answers 404 for ids that cannot name an account.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewEmptyHTTPError(http.StatusNotFound, "not_found", err))
		return 0, false
	}
	return id, true
}

func mapLookupError(err error) *HTTPError {
	if apperrors.IsCode(err, "not_found") {
		return NewEmptyHTTPError(http.StatusNotFound, "not_found", err)
	}
	return NewEmptyHTTPError(http.StatusInternalServerError, "lookup_failed", err)
}

func mapWriteError(err error) *HTTPError {
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		return NewHTTPError(http.StatusBadRequest, "invalid_input", apperrors.MessageOf(err), err).
			withDetails(apperrors.DetailsOf(err))
	case apperrors.IsCode(err, "email_exists"):
		return NewHTTPError(http.StatusBadRequest, "email_exists", apperrors.MessageOf(err), err)
	case apperrors.IsCode(err, "not_found"):
		return NewEmptyHTTPError(http.StatusNotFound, "not_found", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "account_error", "something went wrong", err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.MessageOf(err)
}
