/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func serveThemes(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, catalog.all(), errs)
	}
}

func renderTheme(cfg *Config, template []byte, id string, t Theme) string {
	return strings.NewReplacer(
		"{{PREFIX}}", html.EscapeString(cfg.prefix),
		"{{THEME_ID}}", html.EscapeString(id),
		"{{THEME_TITLE}}", html.EscapeString(t.Title),
		"{{THEME_COLOR}}", html.EscapeString(t.Color),
	).Replace(string(template))
}

// serveThemePage renders /<theme-id>. It is installed as the router's NotFound
// handler, since a catch-all parameter at the root would shadow every other route.
func serveThemePage(cfg *Config, catalog *Catalog, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.prefix), "/")

		theme, ok := catalog.get(id)
		if !ok || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			servePageError(cfg, w, http.StatusNotFound, "Not Found", "Theme not found")

			return
		}

		template, err := assets.ReadFile("assets/theme.html")
		if err != nil {
			errs <- err

			servePageError(cfg, w, http.StatusInternalServerError, "Server Error", "Template error")

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(renderTheme(cfg, template, id, theme)))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Theme %q (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveQRCode generates a PNG QR code pointing at a theme's page, for sharing
// a board with the rest of the room.
func serveQRCode(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("theme")

		if _, ok := catalog.get(id); !ok {
			servePageError(cfg, w, http.StatusNotFound, "Not Found", "Theme not found")

			return
		}

		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/" + id

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			errs <- err

			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func registerThemes(cfg *Config, catalog *Catalog, errs chan<- error, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/api/themes", serveThemes(cfg, catalog, errs))

	mux.GET(cfg.prefix+"/qr/:theme", serveQRCode(cfg, catalog, errs))

	mux.NotFound = serveThemePage(cfg, catalog, errs)
}
