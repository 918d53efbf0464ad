package httpapi

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	clipauth "github.com/clipverse/clipauth"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (s *Server) register(c *gin.Context) {
	req := clipauth.CreateAccountRequest{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("fullName"),
		Password: c.PostForm("password"),
	}

	if s.uploads != nil {
		if url, err := s.uploadFormFile(c, "avatar", "avatars"); err == nil && url != "" {
			req.AvatarURL = url
		}
		if url, err := s.uploadFormFile(c, "coverImage", "covers"); err == nil && url != "" {
			req.CoverImageURL = url
		}
	}

	result, err := s.engine.CreateAccount(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, clipauth.ErrAccountExists):
			fail(c, http.StatusConflict, "user with email or username already exists")
		case errors.Is(err, clipauth.ErrAccountCreationInvalid):
			fail(c, http.StatusBadRequest, "all fields are required")
		case errors.Is(err, clipauth.ErrPasswordPolicy):
			fail(c, http.StatusBadRequest, "password does not meet policy")
		case errors.Is(err, clipauth.ErrAccountCreationRateLimited):
			fail(c, http.StatusTooManyRequests, "too many signup attempts")
		case errors.Is(err, clipauth.ErrAccountCreationDisabled):
			fail(c, http.StatusForbidden, "account creation is disabled")
		default:
			fail(c, http.StatusInternalServerError, "something went wrong while registering the user")
		}
		return
	}

	if result.AccessToken != "" {
		s.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	}
	respond(c, http.StatusCreated, result.User, "user registered successfully")
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "username or email is required")
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		fail(c, http.StatusBadRequest, "username or email is required")
		return
	}

	result, err := s.engine.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, clipauth.ErrLoginRateLimited):
			fail(c, http.StatusTooManyRequests, "too many login attempts")
		case errors.Is(err, clipauth.ErrUserNotFound):
			fail(c, http.StatusNotFound, "user does not exist")
		case errors.Is(err, clipauth.ErrInvalidCredentials):
			fail(c, http.StatusUnauthorized, "invalid user credentials")
		default:
			fail(c, http.StatusInternalServerError, "login failed")
		}
		return
	}

	s.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	respond(c, http.StatusOK, gin.H{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	}, "user logged in successfully")
}

func (s *Server) logout(c *gin.Context) {
	if err := s.engine.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		fail(c, http.StatusInternalServerError, "logout failed")
		return
	}
	s.clearAuthCookies(c)
	respond(c, http.StatusOK, nil, "user logged out")
}

func (s *Server) refreshToken(c *gin.Context) {
	token, _ := c.Cookie("refreshToken")
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		fail(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	access, refresh, err := s.engine.Refresh(c.Request.Context(), token)
	if err != nil {
		// No cookies are written on failure: the client keeps whatever
		// credentials it had.
		switch {
		case errors.Is(err, clipauth.ErrRefreshRateLimited):
			fail(c, http.StatusTooManyRequests, "too many refresh attempts")
		case errors.Is(err, clipauth.ErrUserNotFound):
			fail(c, http.StatusNotFound, "user does not exist")
		case errors.Is(err, clipauth.ErrRefreshReuse),
			errors.Is(err, clipauth.ErrSessionNotFound),
			errors.Is(err, clipauth.ErrRefreshInvalid):
			fail(c, http.StatusUnauthorized, "refresh token is expired or invalid")
		default:
			fail(c, http.StatusInternalServerError, "token refresh failed")
		}
		return
	}

	s.setAuthCookies(c, access, refresh)
	respond(c, http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
	}, "access token refreshed")
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "old and new password are required")
		return
	}

	err := s.engine.ChangePassword(c.Request.Context(), currentUserID(c), req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, clipauth.ErrInvalidCredentials):
			fail(c, http.StatusUnauthorized, "invalid old password")
		case errors.Is(err, clipauth.ErrPasswordReuse):
			fail(c, http.StatusBadRequest, "new password must differ from the old one")
		case errors.Is(err, clipauth.ErrPasswordPolicy):
			fail(c, http.StatusBadRequest, "password does not meet policy")
		case errors.Is(err, clipauth.ErrUserNotFound):
			fail(c, http.StatusNotFound, "user does not exist")
		default:
			fail(c, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	respond(c, http.StatusOK, nil, "password changed successfully")
}

func (s *Server) getCurrentUser(c *gin.Context) {
	profile, err := s.engine.CurrentUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "user does not exist")
		return
	}
	respond(c, http.StatusOK, profile, "current user fetched successfully")
}

func (s *Server) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "fullName or email is required")
		return
	}

	profile, err := s.engine.UpdateProfile(c.Request.Context(), currentUserID(c), clipauth.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		s.failProfileUpdate(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "account details updated successfully")
}

func (s *Server) updateAvatar(c *gin.Context) {
	url, err := s.uploadFormFile(c, "avatar", "avatars")
	if err != nil || url == "" {
		fail(c, http.StatusBadRequest, "avatar file is required")
		return
	}

	profile, err := s.engine.UpdateProfile(c.Request.Context(), currentUserID(c), clipauth.ProfileUpdate{
		AvatarURL: url,
	})
	if err != nil {
		s.failProfileUpdate(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "avatar updated successfully")
}

func (s *Server) updateCoverImage(c *gin.Context) {
	url, err := s.uploadFormFile(c, "coverImage", "covers")
	if err != nil || url == "" {
		fail(c, http.StatusBadRequest, "cover image file is required")
		return
	}

	profile, err := s.engine.UpdateProfile(c.Request.Context(), currentUserID(c), clipauth.ProfileUpdate{
		CoverImageURL: url,
	})
	if err != nil {
		s.failProfileUpdate(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "cover image updated successfully")
}

func (s *Server) failProfileUpdate(c *gin.Context, err error) {
	switch {
	case errors.Is(err, clipauth.ErrProfileUpdateInvalid):
		fail(c, http.StatusBadRequest, "no fields to update")
	case errors.Is(err, clipauth.ErrAccountExists):
		fail(c, http.StatusConflict, "email already in use")
	case errors.Is(err, clipauth.ErrUserNotFound):
		fail(c, http.StatusNotFound, "user does not exist")
	default:
		fail(c, http.StatusInternalServerError, "profile update failed")
	}
}

func (s *Server) uploadFormFile(c *gin.Context, field, folder string) (string, error) {
	if s.uploads == nil {
		return "", nil
	}

	fh, err := c.FormFile(field)
	if err != nil {
		return "", err
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return s.uploads.Upload(
		c.Request.Context(),
		objectName(folder, fh),
		fh.Header.Get("Content-Type"),
		f,
	)
}

func objectName(folder string, fh *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d%s", folder, time.Now().UnixNano(), ext)
}
