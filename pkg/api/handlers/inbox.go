package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"loomdb/pkg/auth"
	"loomdb/pkg/facts"
	"loomdb/pkg/recency"
	"loomdb/pkg/utils"
	"loomdb/pkg/validation"
)

// RegisterInbox registers the per-user view routes.
func RegisterInbox(r *mux.Router) {
	r.HandleFunc("/inbox", getInbox).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}/recent", getRecent).Methods(http.MethodGet)
}

// getInbox returns the acting user's open threads, newest watermark
// first.
func getInbox(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	s, err := facts.Snap()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer s.Close()
	ts, err := recency.OpenThreads(s, user)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"threads": ts})
}

// getRecent returns the group's recently active threads visible to the
// acting user. days and limit query params override the defaults.
func getRecent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	groupID := mux.Vars(r)["id"]
	if err := validation.ValidateID("group", groupID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	s, err := facts.Snap()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer s.Close()
	ts, err := recency.Recent(s, user, groupID, days, limit, time.Now())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"threads": ts})
}
