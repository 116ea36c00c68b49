package apitest

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type userDTO struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}

func (u *User) dto() userDTO { return userDTO{ID: u.ID, UserName: u.UserName, Email: u.Email} }

func (b *Backend) userByEmailLocked(email string) *User {
	email = strings.ToLower(email)
	for _, u := range b.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.UserName == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Registration failed.", "All fields are required.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userByEmailLocked(req.Email) != nil {
		writeError(w, http.StatusBadRequest, "Registration failed.", "Email is already registered.")
		return
	}
	u := &User{ID: uuid.NewString(), UserName: req.UserName, Email: strings.ToLower(req.Email), Password: req.Password}
	b.users[u.ID] = u
	b.confirmTokens[u.Email] = "cf+" + uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registration successful. Check your email."})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		IsMobile bool   `json:"isMobile"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.userByEmailLocked(req.Email)
	if u == nil || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if !u.Confirmed {
		writeError(w, http.StatusForbidden, "Email not confirmed.")
		return
	}
	access, refresh := b.issueLocked(u.ID, time.Now().Add(b.accessTTL))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"token":        access,
		"refreshToken": refresh,
		"user":         u.dto(),
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	hook := b.refreshHook
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.refreshTokens[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}
	// Refresh tokens rotate on every use.
	delete(b.refreshTokens, req.RefreshToken)
	access, refresh := b.issueLocked(userID, time.Now().Add(b.accessTTL))
	writeJSON(w, http.StatusOK, map[string]string{"token": access, "refreshToken": refresh})
}

func (b *Backend) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for tok, owner := range b.refreshTokens {
		if owner == userID {
			delete(b.refreshTokens, tok)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out from all devices."})
}

func (b *Backend) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(r.URL.Query().Get("email"))
	token := r.URL.Query().Get("token")

	b.mu.Lock()
	defer b.mu.Unlock()
	want, ok := b.confirmTokens[email]
	u := b.userByEmailLocked(email)
	if !ok || u == nil || token != want {
		writeError(w, http.StatusBadRequest, "Invalid token.")
		return
	}
	u.Confirmed = true
	delete(b.confirmTokens, email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email confirmed."})
}

func (b *Backend) handleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if u := b.userByEmailLocked(req.Email); u != nil && !u.Confirmed {
		b.confirmTokens[u.Email] = "cf+" + uuid.NewString()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a new email was sent."})
}

func (b *Backend) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if u := b.userByEmailLocked(req.Email); u != nil {
		b.resetTokens[u.Email] = "rs+" + uuid.NewString()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a reset email was sent."})
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Reset failed.", "Passwords do not match.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email := strings.ToLower(req.Email)
	want, ok := b.resetTokens[email]
	u := b.userByEmailLocked(email)
	if !ok || u == nil || req.Token != want {
		writeError(w, http.StatusBadRequest, "Invalid token or expired link.")
		return
	}
	u.Password = req.Password
	delete(b.resetTokens, email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated."})
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]userDTO, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, u.dto())
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.users[userFrom(r)].dto())
}

func (b *Backend) handleFriends(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []map[string]string{}
	for _, id := range b.friends[userFrom(r)] {
		if u, ok := b.users[id]; ok {
			out = append(out, map[string]string{"id": u.ID, "userName": u.UserName})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
