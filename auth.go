package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
)

const sessionCookieName = "wolfed_session"

var errNoSession = errors.New("no moderator session")

func generateSecretCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *server) setSessionCookie(w http.ResponseWriter, r *http.Request) error {
	token, err := generateSessionToken()
	if err != nil {
		return err
	}
	if err := s.store.CreateSession(r.Context(), token); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sessionFromRequest returns the session token when it is still valid
func (s *server) sessionFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", errNoSession
	}
	ok, err := s.store.HasSession(r.Context(), cookie.Value)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errNoSession
	}
	return cookie.Value, nil
}

// requireSession rejects requests without a moderator session
func (s *server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessionFromRequest(r); err != nil {
			if !errors.Is(err, errNoSession) {
				logError("requireSession: HasSession", err)
			}
			writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		next(w, r)
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Moderator code is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.code)) != 1 {
		DebugLog("Rejected login with wrong moderator code")
		writeError(w, http.StatusUnauthorized, "Invalid moderator code")
		return
	}

	if err := s.setSessionCookie(w, r); err != nil {
		logError("handleLogin: setSessionCookie", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	log.Printf("Moderator logged in from %s", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			logError("handleLogout: DeleteSession", err)
		}
		DebugLog("Console %s logged out", shortToken(cookie.Value))
	}
	log.Printf("Moderator logged out from %s", r.RemoteAddr)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
