package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

const (
	// CSRFCookieName is the cookie holding the per-browser token
	CSRFCookieName = "csrf_token"
	// CSRFFieldName is the hidden form field echoing the token
	CSRFFieldName = "csrf_token"
	// CSRFHeaderName lets scripted clients send the token without a form
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenKey contextKey = "csrf_token"

	// multipartMemory is how much of an upload is held in memory before
	// spilling to temporary files
	multipartMemory = 8 << 20
)

// GenerateToken returns a random hex token
func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// CSRF issues a token cookie and checks it against the submitted form field
// on every POST. The token is placed in the request context for templates.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token = GenerateToken()
			http.SetCookie(w, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
				Secure:   r.TLS != nil,
			})
		}

		if r.Method == http.MethodPost {
			reqToken := r.Header.Get(CSRFHeaderName)
			if reqToken == "" {
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, "Malformed form", http.StatusBadRequest)
					return
				}
				reqToken = r.PostFormValue(CSRFFieldName)
			}
			if subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
				http.Error(w, "Invalid CSRF Token", http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), csrfTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFTokenFromContext returns the token set by CSRF
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenKey).(string)
	return token
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}
