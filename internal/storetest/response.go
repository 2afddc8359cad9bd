package storetest

import (
	"net/http"

	"github.com/goccy/go-json"
)

// envelope is the standard LaBB-CAT response body.
type envelope struct {
	Title    string      `json:"title"`
	Version  string      `json:"version"`
	Code     int         `json:"code"`
	Errors   []string    `json:"errors"`
	Messages []string    `json:"messages"`
	Model    interface{} `json:"model"`
}

// writeJSON sends an envelope with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, model interface{}, errs ...string) {
	if errs == nil {
		errs = []string{}
	}
	code := 0
	if status != http.StatusOK {
		code = 1
	}

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Title:    "LaBB-CAT",
		Version:  s.version,
		Code:     code,
		Errors:   errs,
		Messages: []string{},
		Model:    model,
	})
}

// ok sends a 200 envelope with the given model.
func (s *Server) ok(w http.ResponseWriter, model interface{}) {
	s.writeJSON(w, http.StatusOK, model)
}

// fail sends an error envelope with a null model.
func (s *Server) fail(w http.ResponseWriter, status int, errs ...string) {
	s.writeJSON(w, status, nil, errs...)
}
