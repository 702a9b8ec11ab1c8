package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/accounts"
	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/storage/avatar"
	"github.com/gin-gonic/gin"
)

// opTimeout bounds every store call a handler makes.
const opTimeout = 3 * time.Second

func opContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), opTimeout)
}

// identity is set by the auth middleware; a route without it is a wiring bug
// and is answered as unauthenticated.
func identity(ctx *gin.Context) (actorctx.Identity, bool) {
	id, ok := actorctx.IdentityFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx)
	}
	return id, ok
}

type AccountService interface {
	SignUp(ctx context.Context, req user.RegisterRequest) (accounts.Session, error)
	Login(ctx context.Context, req user.LoginRequest) (accounts.Session, error)
	Logout(ctx context.Context, id actorctx.Identity) error
	LogoutAll(ctx context.Context, id actorctx.Identity) error
	Me(ctx context.Context, id actorctx.Identity) (user.Public, error)
	UpdateProfile(ctx context.Context, id actorctx.Identity, p user.ProfileUpdate) (user.Public, error)
	SetAvatar(ctx context.Context, id actorctx.Identity, data []byte) error
	DeleteAvatar(ctx context.Context, id actorctx.Identity) error
	Avatar(ctx context.Context, userID string) ([]byte, string, error)
}

type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID string) (user.User, error)
}

type AuthHandler struct {
	accounts AccountService
	deleter  AccountDeleter
}

func NewAuthHandler(accounts AccountService, deleter AccountDeleter) *AuthHandler {
	return &AuthHandler{accounts: accounts, deleter: deleter}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	sess, err := h.accounts.SignUp(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, sess)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	sess, err := h.accounts.Login(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, sess)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	if err := h.accounts.Logout(cctx, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	if err := h.accounts.LogoutAll(cctx, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "logged out of all sessions"})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	u, err := h.accounts.Me(cctx, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) UpdateMe(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req user.ProfileUpdate

	if !BindStrictJSON(ctx, &req) {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	u, err := h.accounts.UpdateProfile(cctx, id, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// DeleteMe runs the account cascade and returns the deleted profile.
func (h *AuthHandler) DeleteMe(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	u, err := h.deleter.DeleteAccount(cctx, id.UserID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u.Public())
}

func (h *AuthHandler) UploadAvatar(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	fh, err := ctx.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondBadRequest(ctx, avatar.ErrTooLarge.Error(), nil)
			return
		}
		RespondBadRequest(ctx, avatar.ErrUnsupportedType.Error(), nil)
		return
	}

	if fh.Size > avatar.MaxBytes {
		RespondBadRequest(ctx, avatar.ErrTooLarge.Error(), nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		RespondErr(ctx, err)
		return
	}
	defer f.Close()

	// one byte past the cap is enough for the size check to trip
	data, err := io.ReadAll(io.LimitReader(f, avatar.MaxBytes+1))
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	if err := h.accounts.SetAvatar(cctx, id, data); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "avatar uploaded"})
}

func (h *AuthHandler) DeleteAvatar(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	if err := h.accounts.DeleteAvatar(cctx, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "avatar deleted"})
}

// GetAvatar is public.
func (h *AuthHandler) GetAvatar(ctx *gin.Context) {
	cctx, cancel := opContext(ctx)
	defer cancel()

	data, contentType, err := h.accounts.Avatar(cctx, ctx.Param("id"))
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Header("Cache-Control", "no-cache")
	ctx.Data(http.StatusOK, contentType, data)
}
