// ABOUTME: In-memory fake of the auth and posts services for tests
// ABOUTME: Issues JWT access tokens, tracks refresh tokens and serves paginated resource collections

package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIPrefix is prepended to every route, matching the real services.
const APIPrefix = "/api/v1"

// RefreshStyle selects the field naming of refresh responses.
type RefreshStyle int

const (
	CamelExpiresIn RefreshStyle = iota // accessToken, refreshToken, expiresIn
	SnakeExpiresIn                     // access_token, refresh_token, expires_in
	SnakeExpiresAt                     // access_token, expires_at (unix seconds)
	NoExpiry                           // accessToken only
)

var signingKey = []byte("apitest-signing-key")

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	User     map[string]interface{}
	Password string
}

type accessToken struct {
	userID    string
	expiresAt time.Time
}

// Server is a fake backend. Zero-value knobs give sensible behavior; set
// them before issuing requests.
type Server struct {
	*httptest.Server

	// AccessTTL is the lifetime reported and enforced for access tokens.
	AccessTTL time.Duration
	// RefreshStyle controls the refresh response shape.
	RefreshStyle RefreshStyle
	// RotateRefresh issues a new refresh token on every refresh.
	RotateRefresh bool
	// RefreshDelay holds each refresh call open, widening race windows.
	RefreshDelay time.Duration

	mu          sync.Mutex
	accounts    map[string]*account // by email
	access      map[string]accessToken
	refresh     map[string]string // token -> user ID
	collections map[string]*collection
	calls       map[string]int
	seq         int
}

type collection struct {
	order []string
	items map[string]map[string]interface{}
}

// New starts a fake server closed automatically at test end.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		AccessTTL:   time.Hour,
		accounts:    make(map[string]*account),
		access:      make(map[string]accessToken),
		refresh:     make(map[string]string),
		collections: make(map[string]*collection),
		calls:       make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root including the version prefix.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+APIPrefix+"/auth/login", s.handleLogin)
	mux.HandleFunc("POST "+APIPrefix+"/auth/register", s.handleRegister)
	mux.HandleFunc("GET "+APIPrefix+"/auth/me", s.authenticated(s.handleMe))
	mux.HandleFunc("PATCH "+APIPrefix+"/auth/profile", s.authenticated(s.handleProfile))
	mux.HandleFunc("POST "+APIPrefix+"/auth/change-password", s.authenticated(s.handleChangePassword))
	mux.HandleFunc("POST "+APIPrefix+"/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST "+APIPrefix+"/auth/logout", s.handleLogout)

	mux.HandleFunc("GET "+APIPrefix+"/posts/slug/{slug}", s.authenticated(s.handleGetBySlug))
	mux.HandleFunc("GET "+APIPrefix+"/{collection}", s.authenticated(s.handleList))
	mux.HandleFunc("POST "+APIPrefix+"/{collection}", s.authenticated(s.handleCreate))
	mux.HandleFunc("GET "+APIPrefix+"/{collection}/{id}", s.authenticated(s.handleGet))
	mux.HandleFunc("PATCH "+APIPrefix+"/{collection}/{id}", s.authenticated(s.handleUpdate))
	mux.HandleFunc("PUT "+APIPrefix+"/{collection}/{id}", s.authenticated(s.handleReplace))
	mux.HandleFunc("DELETE "+APIPrefix+"/{collection}/{id}", s.authenticated(s.handleDelete))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+strings.TrimPrefix(r.URL.Path, APIPrefix)]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

// Calls returns how many times method and path (without the API prefix)
// were requested.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// AddUser registers an account and returns its ID.
func (s *Server) AddUser(email, password, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, map[string]interface{}{"username": username})
}

func (s *Server) addUserLocked(email, password string, fields map[string]interface{}) string {
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	user := map[string]interface{}{
		"id":        id,
		"email":     email,
		"createdAt": now,
		"updatedAt": now,
	}
	for k, v := range fields {
		user[k] = v
	}
	s.accounts[email] = &account{User: user, Password: password}
	return id
}

// IssueTokens mints an access and refresh token for userID without a
// sign-in round trip.
func (s *Server) IssueTokens(userID string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	access, refresh, err := s.issueLocked(userID)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return access, refresh
}

// ExpireAccess makes the server reject token from now on.
func (s *Server) ExpireAccess(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.access[token]; ok {
		a.expiresAt = time.Now().Add(-time.Second)
		s.access[token] = a
	}
}

// ExpireAllAccess rejects every access token issued so far.
func (s *Server) ExpireAllAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, a := range s.access {
		a.expiresAt = time.Now().Add(-time.Second)
		s.access[tok] = a
	}
}

// RevokeRefresh invalidates a refresh token.
func (s *Server) RevokeRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, token)
}

// ActiveRefreshTokens counts refresh tokens that have not been revoked.
func (s *Server) ActiveRefreshTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

// Seed inserts items into a collection, assigning IDs where missing.
func (s *Server) Seed(name string, items ...map[string]interface{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, s.insertLocked(name, item))
	}
	return ids
}

func (s *Server) insertLocked(name string, item map[string]interface{}) string {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{items: make(map[string]map[string]interface{})}
		s.collections[name] = c
	}
	stored := make(map[string]interface{}, len(item)+3)
	for k, v := range item {
		stored[k] = v
	}
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.New().String()
		stored["id"] = id
	}
	now := time.Now().UTC().Format(time.RFC3339)
	stored["createdAt"] = now
	stored["updatedAt"] = now
	c.items[id] = stored
	c.order = append(c.order, id)
	return id
}

// issueLocked mints an access JWT and an opaque refresh token.
func (s *Server) issueLocked(userID string) (string, string, error) {
	s.seq++
	expiresAt := time.Now().Add(s.AccessTTL)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        strconv.Itoa(s.seq),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if acct := s.userByIDLocked(userID); acct != nil {
		claims.Email, _ = acct.User["email"].(string)
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", "", err
	}
	s.access[access] = accessToken{userID: userID, expiresAt: expiresAt}

	refresh := "rt-" + uuid.New().String()
	s.refresh[refresh] = userID
	return access, refresh, nil
}

func (s *Server) userByIDLocked(id string) *account {
	for _, a := range s.accounts {
		if a.User["id"] == id {
			return a
		}
	}
	return nil
}

// authenticated rejects requests without a live access token.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		a, ok := s.access[token]
		s.mu.Unlock()

		if !ok || time.Now().After(a.expiresAt) {
			writeError(w, http.StatusUnauthorized, "", "Invalid or expired token")
			return
		}
		next(w, r, a.userID)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[in.Email]
	if !ok || acct.Password != in.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", "invalid_credentials")
		return
	}
	s.writeGrantLocked(w, http.StatusOK, acct)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	email, _ := in["email"].(string)
	password, _ := in["password"].(string)
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required", "validation_failed")
		return
	}
	delete(in, "password")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		writeError(w, http.StatusConflict, "Email already registered", "conflict")
		return
	}
	s.addUserLocked(email, password, in)
	s.writeGrantLocked(w, http.StatusCreated, s.accounts[email])
}

func (s *Server) writeGrantLocked(w http.ResponseWriter, status int, acct *account) {
	access, refresh, err := s.issueLocked(acct.User["id"].(string))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	writeData(w, status, map[string]interface{}{
		"accessToken":  access,
		"refreshToken": refresh,
		"expiresIn":    int(s.AccessTTL / time.Second),
		"user":         acct.User,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.userByIDLocked(userID)
	if acct == nil {
		writeError(w, http.StatusNotFound, "User not found", "not_found")
		return
	}
	writeData(w, http.StatusOK, acct.User)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.userByIDLocked(userID)
	if acct == nil {
		writeError(w, http.StatusNotFound, "User not found", "not_found")
		return
	}
	for k, v := range patch {
		if k == "id" || k == "email" {
			continue
		}
		acct.User[k] = v
	}
	acct.User["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
	writeData(w, http.StatusOK, acct.User)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, userID string) {
	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.userByIDLocked(userID)
	if acct == nil || acct.Password != in.OldPassword {
		writeError(w, http.StatusBadRequest, "Current password is incorrect", "invalid_password")
		return
	}
	acct.Password = in.NewPassword
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Password changed"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	if s.RefreshDelay > 0 {
		time.Sleep(s.RefreshDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[in.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", "invalid_refresh_token")
		return
	}

	access, refresh, err := s.issueLocked(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	if s.RotateRefresh {
		delete(s.refresh, in.RefreshToken)
	} else {
		delete(s.refresh, refresh)
		refresh = ""
	}

	ttl := int(s.AccessTTL / time.Second)
	data := map[string]interface{}{}
	switch s.RefreshStyle {
	case CamelExpiresIn:
		data["accessToken"] = access
		data["expiresIn"] = ttl
		if refresh != "" {
			data["refreshToken"] = refresh
		}
	case SnakeExpiresIn:
		data["access_token"] = access
		data["expires_in"] = ttl
		if refresh != "" {
			data["refresh_token"] = refresh
		}
	case SnakeExpiresAt:
		data["access_token"] = access
		data["expires_at"] = time.Now().Add(s.AccessTTL).Unix()
		if refresh != "" {
			data["refresh_token"] = refresh
		}
	case NoExpiry:
		data["accessToken"] = access
		if refresh != "" {
			data["refreshToken"] = refresh
		}
	}
	writeData(w, http.StatusOK, data)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	delete(s.refresh, in.RefreshToken)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Logged out"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ string) {
	name := r.PathValue("collection")
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 10)

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []map[string]interface{}
	if c, ok := s.collections[name]; ok {
		for _, id := range c.order {
			item := c.items[id]
			if status := q.Get("status"); status != "" && item["status"] != status {
				continue
			}
			all = append(all, item)
		}
	}

	offset := (queryInt(q.Get("page"), 1) - 1) * limit
	page := queryInt(q.Get("page"), 1)
	if q.Has("offset") {
		offset = queryInt(q.Get("offset"), 0)
		page = offset/limit + 1
	}

	items := []map[string]interface{}{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		items = all[offset:end]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
		"meta": map[string]int{
			"page":       page,
			"limit":      limit,
			"total":      len(all),
			"totalPages": (len(all) + limit - 1) / limit,
		},
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, _ string) {
	var item map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if title, _ := item["title"].(string); title == "" {
		writeError(w, http.StatusBadRequest, "Title is required", "validation_failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := r.PathValue("collection")
	id := s.insertLocked(name, item)
	writeData(w, http.StatusCreated, s.collections[name].items[id])
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.findLocked(r.PathValue("collection"), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Resource not found", "not_found")
		return
	}
	writeData(w, http.StatusOK, item)
}

func (s *Server) handleGetBySlug(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slug := r.PathValue("slug")
	if c, ok := s.collections["posts"]; ok {
		for _, id := range c.order {
			if c.items[id]["slug"] == slug {
				writeData(w, http.StatusOK, c.items[id])
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Post not found", "not_found")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, _ string) {
	s.mutate(w, r, false)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request, _ string) {
	s.mutate(w, r, true)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, replace bool) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.findLocked(r.PathValue("collection"), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Resource not found", "not_found")
		return
	}
	if replace {
		for k := range item {
			if k != "id" && k != "createdAt" {
				delete(item, k)
			}
		}
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		item[k] = v
	}
	item["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
	writeData(w, http.StatusOK, item)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, id := r.PathValue("collection"), r.PathValue("id")
	c, ok := s.collections[name]
	if !ok || c.items[id] == nil {
		writeError(w, http.StatusNotFound, "Resource not found", "not_found")
		return
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Deleted"})
}

func (s *Server) findLocked(name, id string) (map[string]interface{}, bool) {
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	item, ok := c.items[id]
	return item, ok
}

// Items returns the IDs stored in a collection, sorted.
func (s *Server) Items(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

func queryInt(raw string, def int) int {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{"success": true, "data": data})
}

// writeError emits the failure envelope. message may be empty to exercise
// the error-field fallback.
func writeError(w http.ResponseWriter, status int, message, code string) {
	body := map[string]interface{}{"success": false, "error": code}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}

// String implements fmt.Stringer for debugging failed assertions.
func (s *Server) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("apitest.Server{accounts=%d access=%d refresh=%d calls=%v}",
		len(s.accounts), len(s.access), len(s.refresh), s.calls)
}
