/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func logErr(err error) {
	log.Printf("%s | ERROR: %v", time.Now().Format(logDate), err)
}

// drainErrors logs handler write failures until errs is closed.
func drainErrors(cfg *Config, errs <-chan error) {
	for err := range errs {
		logf(cfg, "ERROR: %v", err)
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<link rel="stylesheet" href="/assets/bingo.css">`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body class=\"notice\"><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}

func servePageError(cfg *Config, w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_, _ = w.Write([]byte(newPage(title, body)))
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	data, err := json.Marshal(v)
	if err != nil {
		errs <- err

		status = http.StatusInternalServerError
		data = []byte(`{"error":"Internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		errs <- err
	}
}

func writeJSONError(cfg *Config, w http.ResponseWriter, status int, message string, errs chan<- error) {
	writeJSON(cfg, w, status, map[string]string{"error": message}, errs)
}
