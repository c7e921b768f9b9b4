// Package devserver implements the platform's auth REST surface in-process,
// for local development and integration tests. It mints real JWTs and speaks
// the production envelope, but short-circuits the Google provider unless real
// client credentials are configured.
package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vbongda/vleague-auth/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const maxBodyBytes = 1 << 20

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithGoogleClient configures real Google OAuth client credentials. Without
// them the server serves its own authorize page that immediately redirects
// back with a dev code. Empty credentials leave dev mode in place.
func WithGoogleClient(clientID, clientSecret string) Option {
	return func(s *Server) {
		if clientID == "" || clientSecret == "" {
			return
		}
		s.google = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		}
	}
}

// WithAllowedOrigin enables CORS for the origin the browser application is
// served from. Empty leaves CORS off.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) {
		s.allowedOrigin = origin
	}
}

// WithJWTSecret overrides the randomly generated signing secret.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		s.issuer.secret = []byte(secret)
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.issuer.nowTime = nowFunc
	}
}

// Server is the in-process auth backend.
type Server struct {
	log           zerolog.Logger
	mux           *http.ServeMux
	users         *userRepo
	issuer        *tokenIssuer
	google        *oauth2.Config
	codes         *codeRepo
	allowedOrigin string
}

// New creates a dev server with an empty user store.
func New(options ...Option) *Server {
	s := &Server{
		log:    zerolog.Nop(),
		mux:    http.NewServeMux(),
		users:  newUserRepo(),
		issuer: newTokenIssuer(uuid.New().String()),
		codes:  newCodeRepo(),
	}

	for _, opt := range options {
		opt(s)
	}

	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/google-login", s.handleGoogleLogin)
	s.mux.HandleFunc("GET /auth/google", s.handleGoogleAuthURL)
	s.mux.HandleFunc("GET /auth/google/authorize", s.handleDevAuthorize)
	s.mux.HandleFunc("POST /auth/google/callback", s.handleGoogleCallback)
	s.mux.HandleFunc("GET /auth/me", s.handleMe)
	s.mux.HandleFunc("GET /auth/check", s.handleCheck)
	s.mux.HandleFunc("POST /auth/refresh", s.handleRefresh)

	return s
}

// Handler returns the route handler, rooted at "/auth/...".
func (s *Server) Handler() http.Handler {
	if s.allowedOrigin == "" {
		return s.mux
	}
	return s.cors(s.mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Seed registers an account directly, for demos and tests.
func (s *Server) Seed(username, email, password string) error {
	_, err := s.users.create(username, "", email, password)
	return errors.Wrap(err, "[Server.Seed] creating user")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" || strings.TrimSpace(req.Username) == "" {
		s.writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	account, err := s.users.create(req.Username, req.FullName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errEmailTaken) {
			s.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.log.Error().Err(err).Msg("register failed")
		s.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.writeCredentials(w, account)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.users.authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.writeCredentials(w, account)
}

// handleGoogleLogin exchanges a Google ID token credential for a session.
// The dev server reads the claims unverified; verifying the credential
// against Google's keys is the production backend's job.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := decodeBody(r, &req); err != nil || req.Credential == "" {
		s.writeError(w, http.StatusBadRequest, "credential is required")
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(req.Credential, claims); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid Google credential")
		return
	}
	email, _ := claims["email"].(string)
	if email == "" {
		s.writeError(w, http.StatusUnauthorized, "Google credential carries no email")
		return
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	account := s.users.findOrCreateGoogle(email, name, picture)
	s.writeCredentials(w, account)
}

// handleGoogleAuthURL returns the provider authorization URL. With real
// client credentials it is Google's consent page; otherwise it points at the
// dev authorize route, which plays the provider's part.
func (s *Server) handleGoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		s.writeError(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}

	if s.google != nil {
		cfg := *s.google
		cfg.RedirectURL = redirectURI
		authURL := cfg.AuthCodeURL(uuid.New().String(), oauth2.AccessTypeOffline)
		s.writeSuccess(w, map[string]string{"auth_url": authURL})
		return
	}

	authURL := fmt.Sprintf("http://%s/auth/google/authorize?redirect_uri=%s",
		r.Host, url.QueryEscape(redirectURI))
	s.writeSuccess(w, map[string]string{"auth_url": authURL})
}

// handleDevAuthorize stands in for the Google consent page: it issues a
// single-use code for the dev Google account and bounces straight back.
func (s *Server) handleDevAuthorize(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.URL.Query().Get("redirect_uri")
	target, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	account := s.users.findOrCreateGoogle("dev@vleague.local", "Dev Supporter", "")
	code := s.codes.issue(account.ID)

	query := target.Query()
	query.Set("code", code)
	if state := r.URL.Query().Get("state"); state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	// Dev codes are single use: a replayed code is rejected like any other
	// unknown code.
	if userID, ok := s.codes.redeem(req.Code); ok {
		account, err := s.users.getByID(userID)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "unknown authorization code")
			return
		}
		s.writeCredentials(w, account)
		return
	}

	if s.google == nil {
		s.writeError(w, http.StatusUnauthorized, "unknown authorization code")
		return
	}

	token, err := s.google.Exchange(r.Context(), req.Code)
	if err != nil {
		s.log.Warn().Err(err).Msg("google code exchange failed")
		s.writeError(w, http.StatusUnauthorized, "authorization code rejected by Google")
		return
	}

	info, err := s.fetchGoogleUserInfo(r, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("google userinfo fetch failed")
		s.writeError(w, http.StatusBadGateway, "could not fetch Google profile")
		return
	}

	account := s.users.findOrCreateGoogle(info.Email, info.Name, info.Picture)
	s.writeCredentials(w, account)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := s.authenticated(w, r)
	if !ok {
		return
	}
	s.writeSuccess(w, account.profile())
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticated(w, r); !ok {
		return
	}
	s.writeSuccess(w, map[string]bool{"valid": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &req); err != nil || req.RefreshToken == "" {
		s.writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	userID, err := s.issuer.validate(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	account, err := s.users.getByID(userID)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.writeCredentials(w, account)
}

// googleUserInfo matches the response from Google's UserInfo API.
type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *Server) fetchGoogleUserInfo(r *http.Request, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.google.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, errors.Wrap(err, "[Server.fetchGoogleUserInfo] userinfo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Server.fetchGoogleUserInfo] userinfo returned status %d", resp.StatusCode)
	}

	info := &googleUserInfo{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(info); err != nil {
		return nil, errors.Wrap(err, "[Server.fetchGoogleUserInfo] decoding userinfo")
	}
	return info, nil
}

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request) (*account, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		s.writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}

	userID, err := s.issuer.validate(raw, tokenTypeAccess)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	acc, err := s.users.getByID(userID)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	return acc, true
}

func (s *Server) writeCredentials(w http.ResponseWriter, acc *account) {
	access, refresh, err := s.issuer.pair(acc)
	if err != nil {
		s.log.Error().Err(err).Msg("token minting failed")
		s.writeError(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	s.writeSuccess(w, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          acc.profile(),
	})
}

type response struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, response{Success: utils.Ptr(true), Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, response{Success: utils.Ptr(false), Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}

func decodeBody(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(out)
}
