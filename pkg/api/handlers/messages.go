package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"loomdb/pkg/facts"
	"loomdb/pkg/ingest"
	"loomdb/pkg/ingest/queue"
	"loomdb/pkg/threads"
	"loomdb/pkg/utils"
	"loomdb/pkg/validation"
	"loomdb/pkg/visibility"
)

// RegisterMessages registers message routes bound to the ingest queue.
func RegisterMessages(r *mux.Router, q *queue.Queue) {
	r.HandleFunc("/threads/{id}/messages", postMessage(q)).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/messages", listMessages).Methods(http.MethodGet)
}

// postMessage accepts a message and enqueues it for the ingest
// processor; commit happens asynchronously, so the response is 202 with
// the assigned id and timestamp.
func postMessage(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body struct {
			Body     string   `json:"body"`
			Mentions []string `json:"mentions,omitempty"`
			Group    string   `json:"group,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		user, threadID, ok := threadRequest(w, r, "")
		if !ok {
			return
		}
		if err := validation.ValidateBody(body.Body); err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validation.ValidateMentions(body.Mentions); err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Group != "" {
			if err := validation.ValidateID("group", body.Group); err != nil {
				utils.JSONError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		payload, err := json.Marshal(ingest.MessagePayload{Body: body.Body, Mentions: body.Mentions})
		if err != nil {
			http.Error(w, `{"error":"marshal failed"}`, http.StatusInternalServerError)
			return
		}
		op := &queue.Op{
			Thread:  threadID,
			ID:      utils.NewID("msg"),
			Author:  user,
			Group:   body.Group,
			Payload: payload,
			TS:      time.Now().UTC().UnixNano(),
		}
		if err := q.TryEnqueue(op); err != nil {
			if err == queue.ErrQueueFull {
				http.Error(w, `{"error":"ingest queue full"}`, http.StatusServiceUnavailable)
				return
			}
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusServiceUnavailable)
			return
		}
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]any{"id": op.ID, "ts": op.TS})
	}
}

// listMessages returns the thread's messages ascending by creation
// time. limit keeps only the newest n.
func listMessages(w http.ResponseWriter, r *http.Request) {
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
	canSee, err := visibility.CanSee(s, user, threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if !canSee {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	msgs, err := threads.Messages(s, threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}
