package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/auth"
	"github.com/mahaj/chatter-box/pkg/model"
	"github.com/mahaj/chatter-box/pkg/store"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FullName   *string `json:"fullName"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profilePic"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = normalizeEmail(req.Email)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing details")
		return
	}

	hash, err := s.Passwords.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}

	user := &model.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Bio:          strings.TrimSpace(req.Bio),
	}
	if err := s.Users.Create(r.Context(), user); err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("user_signed_up", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"userData": user,
		"token":    token,
		"message":  "Account created successfully",
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.Users.FindByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.fail(w, r, err)
		return
	}
	if user == nil || !s.Passwords.Verify(req.Password, user.PasswordHash) {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"userData": user,
		"token":    token,
		"message":  "Login successful",
	})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	user, err := s.Users.FindByID(r.Context(), currentUser(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Not authorized, user not found")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decode(w, r, &req) {
		return
	}

	upd := store.ProfileUpdate{Bio: req.Bio}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Full name cannot be empty")
			return
		}
		upd.FullName = &name
	}
	if req.ProfilePic != nil && *req.ProfilePic != "" {
		url, err := s.Uploader.Upload(r.Context(), *req.ProfilePic)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		upd.ProfilePic = &url
	}

	user, err := s.Users.UpdateProfile(r.Context(), currentUser(r), upd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}
