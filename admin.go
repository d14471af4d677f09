/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const maxAdminBody = 1 << 20

type adminCredentials struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash,omitempty"` // bcrypt
	Password     string `json:"_password_plain,omitempty"`
}

func loadAdminCredentials(path string) (adminCredentials, error) {
	var creds adminCredentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("read admin config: %w", err)
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse admin config %s: %w", path, err)
	}

	if creds.Username == "" || (creds.PasswordHash == "" && creds.Password == "") {
		return creds, fmt.Errorf("admin config %s: username and password required", path)
	}

	return creds, nil
}

func (a adminCredentials) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1

	var passOK bool
	if a.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) == 1
	}

	return userOK && passOK
}

// requireAdmin checks Basic credentials against the admin config file, which is
// re-read on every request so edits apply immediately.
func requireAdmin(cfg *Config, errs chan<- error, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		username, password, ok := r.BasicAuth()
		if ok {
			creds, err := loadAdminCredentials(cfg.adminConfig)
			if err != nil {
				logErr(err)
			} else if creds.check(username, password) {
				next(w, r, p)

				return
			}
		}

		logf(cfg, "ADMIN: Rejected %s %s from %s", r.Method, r.URL.Path, realIP(r))

		w.Header().Set("WWW-Authenticate", `Basic realm="Admin Area"`)
		writeJSONError(cfg, w, http.StatusUnauthorized, "Unauthorized", errs)
	}
}

func serveAdminThemes(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, catalog.all(), errs)
	}
}

func saveAdminThemes(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var themes map[string]Theme
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&themes); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, err.Error(), errs)

			return
		}

		if themes == nil {
			writeJSONError(cfg, w, http.StatusBadRequest, "Invalid theme format", errs)

			return
		}

		if err := catalog.commit(themes); err != nil {
			writeValidationError(cfg, w, err, errs)

			return
		}

		logf(cfg, "ADMIN: %s replaced catalog with %d themes", realIP(r), len(themes))

		writeJSON(cfg, w, http.StatusOK, map[string]any{"success": true, "message": "Themes saved"}, errs)
	}
}

func putAdminTheme(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		var theme Theme
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&theme); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, err.Error(), errs)

			return
		}

		if err := catalog.put(id, theme); err != nil {
			writeValidationError(cfg, w, err, errs)

			return
		}

		logf(cfg, "ADMIN: %s saved theme %q", realIP(r), id)

		writeJSON(cfg, w, http.StatusOK, map[string]any{"success": true, "message": "Theme saved"}, errs)
	}
}

func deleteAdminTheme(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		if !catalog.delete(id) {
			writeJSONError(cfg, w, http.StatusNotFound, "Theme not found", errs)

			return
		}

		logf(cfg, "ADMIN: %s deleted theme %q", realIP(r), id)

		writeJSON(cfg, w, http.StatusOK, map[string]any{"success": true, "message": "Theme deleted"}, errs)
	}
}

func serveAdminRooms(cfg *Config, h *Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		summaries, err := h.summaries(r.Context())
		if err != nil {
			writeJSONError(cfg, w, http.StatusServiceUnavailable, err.Error(), errs)

			return
		}

		writeJSON(cfg, w, http.StatusOK, summaries, errs)
	}
}

func writeValidationError(cfg *Config, w http.ResponseWriter, err error, errs chan<- error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSONError(cfg, w, http.StatusBadRequest, verr.Error(), errs)

		return
	}

	writeJSONError(cfg, w, http.StatusInternalServerError, err.Error(), errs)
}

func serveAdminPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return servePrefixedPage(cfg, errs, "assets/admin.html", "Admin page")
}

func registerAdmin(cfg *Config, catalog *Catalog, h *Hub, errs chan<- error, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/admin", serveAdminPage(cfg, errs))

	mux.GET(cfg.prefix+"/api/admin/themes", requireAdmin(cfg, errs, serveAdminThemes(cfg, catalog, errs)))
	mux.POST(cfg.prefix+"/api/admin/themes", requireAdmin(cfg, errs, saveAdminThemes(cfg, catalog, errs)))
	mux.PUT(cfg.prefix+"/api/admin/themes/:id", requireAdmin(cfg, errs, putAdminTheme(cfg, catalog, errs)))
	mux.DELETE(cfg.prefix+"/api/admin/themes/:id", requireAdmin(cfg, errs, deleteAdminTheme(cfg, catalog, errs)))

	mux.GET(cfg.prefix+"/api/admin/rooms", requireAdmin(cfg, errs, serveAdminRooms(cfg, h, errs)))
}
