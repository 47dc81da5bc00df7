package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnauthorized = "http_unauthorized"
)

// GetTokenFromHTTPRequest returns the bearer token of the request
// Authorization header.
func GetTokenFromHTTPRequest(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func verifyToken(expected string, r *http.Request) error {
	if expected == "" {
		return nil
	}

	token := GetTokenFromHTTPRequest(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// without the given bearer token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("client_id", r.Header.Get("X-Client-ID")).Error(err)
			return err
		}

		return nil
	}
}

// VerifyAuthTokenHandler rejects requests without the given bearer token. An
// empty token accepts every request.
func VerifyAuthTokenHandler(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("client_id", r.Header.Get("X-Client-ID")).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
