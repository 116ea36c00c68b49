// Package apitest runs an in-memory MeepleBoard backend for tests.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// User is a registered account.
type User struct {
	ID        string
	UserName  string
	Email     string
	Password  string
	Confirmed bool
}

// Game is a game the backend has imported.
type Game struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BggID         int    `json:"bggId"`
	YearPublished int    `json:"yearPublished,omitempty"`
	IsExpansion   bool   `json:"isExpansion"`
	BaseGameBggID *int   `json:"baseGameBggId,omitempty"`
}

// BggGame is an entry of the simulated BoardGameGeek catalogue.
type BggGame struct {
	BggID         int
	Name          string
	YearPublished int
	IsExpansion   bool
	BaseBggID     int
}

// Backend is a fake API server. All exported methods are safe for
// concurrent use.
type Backend struct {
	Server *httptest.Server
	Router *mux.Router

	mu         sync.Mutex
	key        []byte
	generation int
	accessTTL  time.Duration

	users         map[string]*User  // by id
	refreshTokens map[string]string // token -> user id
	confirmTokens map[string]string // email -> token
	resetTokens   map[string]string // email -> token
	friends       map[string][]string

	games    map[string]*Game
	catalog  map[int]BggGame
	matches  []match
	sessions map[string]*session
	library  map[string]map[string]*libraryEntry // user -> game -> entry

	hits         map[string]int
	refreshCalls int
	refreshHook  func()
}

// New starts a backend and closes it when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		key:           []byte(uuid.NewString()),
		generation:    1,
		accessTTL:     15 * time.Minute,
		users:         map[string]*User{},
		refreshTokens: map[string]string{},
		confirmTokens: map[string]string{},
		resetTokens:   map[string]string{},
		friends:       map[string][]string{},
		games:         map[string]*Game{},
		catalog:       map[int]BggGame{},
		sessions:      map[string]*session{},
		library:       map[string]map[string]*libraryEntry{},
		hits:          map[string]int{},
	}
	b.Router = b.routes()
	b.Server = httptest.NewServer(b.Router)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API root to hand to the client.
func (b *Backend) URL() string { return b.Server.URL + "/MeepleBoard" }

func (b *Backend) routes() *mux.Router {
	r := mux.NewRouter()
	root := r.PathPrefix("/MeepleBoard").Subrouter()
	root.Use(b.countHits)

	root.HandleFunc("/auth/register", b.handleRegister).Methods(http.MethodPost)
	root.HandleFunc("/auth/login", b.handleLogin).Methods(http.MethodPost)
	root.HandleFunc("/auth/refresh-token", b.handleRefresh).Methods(http.MethodPost)
	root.HandleFunc("/auth/confirm-email", b.handleConfirmEmail).Methods(http.MethodGet)
	root.HandleFunc("/auth/resend-confirmation", b.handleResendConfirmation).Methods(http.MethodPost)
	root.HandleFunc("/auth/forgot-password", b.handleForgotPassword).Methods(http.MethodPost)
	root.HandleFunc("/auth/reset-password", b.handleResetPassword).Methods(http.MethodPost)

	api := root.NewRoute().Subrouter()
	api.Use(b.requireAuth)
	api.HandleFunc("/auth/logout-all", b.handleLogoutAll).Methods(http.MethodPost)
	api.HandleFunc("/users", b.handleUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/me", b.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/friendships", b.handleFriends).Methods(http.MethodGet)
	b.gameRoutes(api)
	b.matchRoutes(api)
	b.sessionRoutes(api)
	b.libraryRoutes(api)
	return r
}

// AddUser registers a confirmed account and returns its id.
func (b *Backend) AddUser(userName, email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &User{ID: uuid.NewString(), UserName: userName, Email: strings.ToLower(email), Password: password, Confirmed: true}
	b.users[u.ID] = u
	return u.ID
}

// AddFriendship links two users both ways.
func (b *Backend) AddFriendship(a, c string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.friends[a] = append(b.friends[a], c)
	b.friends[c] = append(b.friends[c], a)
}

// ConfirmToken returns the pending confirmation token for email.
func (b *Backend) ConfirmToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.confirmTokens[strings.ToLower(email)]
}

// ResetToken returns the pending password reset token for email.
func (b *Backend) ResetToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resetTokens[strings.ToLower(email)]
}

// IssueTokens mints a token pair for userID whose access token expires at exp.
func (b *Backend) IssueTokens(userID string, exp time.Time) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(userID, exp)
}

// RevokeAccessTokens makes every access token issued so far fail with 401
// while leaving refresh tokens usable.
func (b *Backend) RevokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
}

// RevokeRefreshTokens invalidates every refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshTokens = map[string]string{}
}

// OnRefresh runs fn at the start of every refresh request, outside the lock.
func (b *Backend) OnRefresh(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshHook = fn
}

func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// Hits counts requests by "METHOD /path" (path without the API prefix).
func (b *Backend) Hits(methodAndPath string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[methodAndPath]
}

func (b *Backend) issueLocked(userID string, exp time.Time) (string, string) {
	u := b.users[userID]
	claims := jwt.MapClaims{
		"sub":         userID,
		"unique_name": u.UserName,
		"email":       u.Email,
		"gen":         b.generation,
		"iat":         time.Now().Unix(),
		"exp":         exp.Unix(),
		"jti":         uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.key)
	if err != nil {
		panic(fmt.Sprintf("apitest: signing token: %v", err))
	}
	refresh := uuid.NewString()
	b.refreshTokens[refresh] = userID
	return access, refresh
}

type ctxKey struct{}

func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (b *Backend) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/MeepleBoard")]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token the way the real server does.
func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing token.")
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return b.key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token expired or invalid.")
			return
		}

		b.mu.Lock()
		gen, _ := claims["gen"].(float64)
		current := b.generation
		sub, _ := claims["sub"].(string)
		_, known := b.users[sub]
		b.mu.Unlock()
		if int(gen) != current || !known {
			writeError(w, http.StatusUnauthorized, "Token revoked.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sub)))
	})
}

type apiError struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, apiError{Message: msg, Errors: details})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return false
	}
	return true
}
