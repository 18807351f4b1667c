package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"loomdb/pkg/auth"
	"loomdb/pkg/facts"
	"loomdb/pkg/logger"
	"loomdb/pkg/recency"
	"loomdb/pkg/subs"
	"loomdb/pkg/threads"
	"loomdb/pkg/utils"
	"loomdb/pkg/validation"
	"loomdb/pkg/visibility"
)

// RegisterThreads registers thread view and state routes.
func RegisterThreads(r *mux.Router) {
	r.HandleFunc("/threads/{id}", getThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}/tags", tagThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/show", showThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/hide", hideThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/subscribe", subscribeThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/unsubscribe", unsubscribeThread).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/bump", bumpThread).Methods(http.MethodPost)
}

// threadRequest resolves the acting user and thread id shared by every
// handler here. Returns ok=false after writing the error response.
func threadRequest(w http.ResponseWriter, r *http.Request, bodyUser string) (user, threadID string, ok bool) {
	user, status, msg := auth.ResolveUserFromRequest(r, bodyUser)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return "", "", false
	}
	threadID = mux.Vars(r)["id"]
	if err := validation.ValidateID("thread", threadID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return user, threadID, true
}

// getThread returns the thread aggregate for the acting user: 404 when
// no fact references the id, 403 when the user may not see it. Tags are
// filtered to the user's visible set and LastOpenAt is annotated.
func getThread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, threadID, ok := threadRequest(w, r, "")
	if !ok {
		return
	}
	s, err := facts.Snap()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer s.Close()

	t, found, err := threads.ByID(s, threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
		return
	}
	canSee, err := visibility.CanSee(s, user, threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if !canSee {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	if t.Tags, err = visibility.VisibleTags(s, user, threadID); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if t.LastOpenAt, err = recency.LastOpenAt(s, threadID, user); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(t)
}

// tagThread attaches a tag, creating the thread under the given group
// when it does not exist yet, and fans subscription plus open state out
// to the broadcast group's members. One atomic transaction.
func tagThread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var body struct {
		Tag   string `json:"tag"`
		Group string `json:"group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	_, threadID, ok := threadRequest(w, r, "")
	if !ok {
		return
	}
	if err := validation.ValidateTag(body.Tag); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateID("group", body.Group); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := facts.Snap()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	b, err := subs.TagThread(s, body.Group, threadID, body.Tag)
	s.Close()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	tx, applied, err := facts.Apply(b)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	audit("thread_tagged", "thread", threadID, "tag", body.Tag, "group", body.Group, "applied", applied)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"tx": tx, "applied": applied})
}

func showThread(w http.ResponseWriter, r *http.Request) {
	applyStateChange(w, r, "thread_shown", subs.ShowThread)
}

func hideThread(w http.ResponseWriter, r *http.Request) {
	applyStateChange(w, r, "thread_hidden", subs.HideThread)
}

func subscribeThread(w http.ResponseWriter, r *http.Request) {
	applyStateChange(w, r, "thread_subscribed", subs.Subscribe)
}

func unsubscribeThread(w http.ResponseWriter, r *http.Request) {
	applyStateChange(w, r, "thread_unsubscribed", subs.Unsubscribe)
}

func applyStateChange(w http.ResponseWriter, r *http.Request, event string, build func(user, thread string) facts.Batch) {
	w.Header().Set("Content-Type", "application/json")
	user, threadID, ok := threadRequest(w, r, "")
	if !ok {
		return
	}
	tx, applied, err := facts.Apply(build(user, threadID))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	audit(event, "user", user, "thread", threadID, "applied", applied)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"tx": tx, "applied": applied})
}

// bumpThread advances the user's open-state watermark. A 200 with
// bumped=false means the thread was not open and nothing was written.
func bumpThread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, threadID, ok := threadRequest(w, r, "")
	if !ok {
		return
	}
	bumped, err := subs.BumpLastOpen(user, threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if bumped {
		audit("thread_bumped", "user", user, "thread", threadID)
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"bumped": bumped})
}

func audit(event string, args ...any) {
	if logger.Audit != nil {
		logger.Audit.Info(event, args...)
		return
	}
	logger.Info(event, args...)
}
