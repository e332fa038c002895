// Package admin provides the control API's authentication layer: JWT
// issuance/verification for a single operator account, and HTTP
// handlers for login and session introspection. Grounded on
// _examples/rjsadow-sortie/internal/plugins/auth/jwt.go's
// Claims/bcrypt/golang-jwt shape, trimmed to a single built-in account
// since the protocol server has no user directory of its own.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenType distinguishes access tokens issued to operators.
type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims are the JWT claims carried by an admin session token.
type Claims struct {
	jwt.RegisteredClaims
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
}

// Authenticator issues and verifies bearer tokens for the control
// API's single operator account.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	accessExpiry time.Duration
}

// NewAuthenticator builds an Authenticator. passwordHash must be a
// bcrypt hash produced by HashPassword.
func NewAuthenticator(username, passwordHash string, secret []byte, accessExpiry time.Duration) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("admin: jwt secret must be at least 32 bytes")
	}
	if accessExpiry <= 0 {
		accessExpiry = 15 * time.Minute
	}
	return &Authenticator{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       secret,
		accessExpiry: accessExpiry,
	}, nil
}

// HashPassword bcrypt-hashes a password for storage in configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var ErrInvalidCredentials = errors.New("admin: invalid credentials")

// Login verifies a username/password pair and issues an access token.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.issueToken()
}

func (a *Authenticator) issueToken() (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "simplenet-admin",
			Subject:   a.username,
		},
		Username:  a.username,
		TokenType: TokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token, returning its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("admin: unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.TokenType != TokenTypeAccess {
		return nil, errors.New("admin: invalid token")
	}
	return claims, nil
}

// loginRequest is the JSON body expected by HandleLogin.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleLogin is an http.HandlerFunc exchanging credentials for a
// bearer token.
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	token, err := a.Login(req.Username, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		AccessToken: token,
		ExpiresIn:   int64(a.accessExpiry.Seconds()),
	})
}

// SessionSummary describes one connected client. HandleSessions does
// not return it: that endpoint reports only the connection count.
type SessionSummary struct {
	ClientID string `json:"client_id"`
	EnvType  string `json:"env_type"`
}

// SessionLister is implemented by server.Server for the purposes of
// the control API; it avoids an import of the server package from
// admin, keeping the dependency direction server -> (none) and
// cmd/server -> admin, server.
type SessionLister interface {
	NumConnections() int
}

// HandleSessions reports the live connection count.
func HandleSessions(lister SessionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"connections": lister.NumConnections(),
		})
	}
}
