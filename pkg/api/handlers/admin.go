package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"loomdb/pkg/facts"
	"loomdb/pkg/ingest/queue"
	"loomdb/pkg/logger"
	"loomdb/pkg/utils"
	"loomdb/pkg/validation"
)

// RegisterAdmin registers admin-only routes onto the admin subrouter.
// Group membership and tag ownership facts are produced here and only
// here; the engine itself never mutates them.
func RegisterAdmin(r *mux.Router, q *queue.Queue) {
	r.HandleFunc("/health", adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", adminStats(q)).Methods(http.MethodGet)
	r.HandleFunc("/facts/{attr}/{entity}", adminFactHistory).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}/members", adminAddMember).Methods(http.MethodPost)
	r.HandleFunc("/groups/{id}/members/{user}", adminRemoveMember).Methods(http.MethodDelete)
	r.HandleFunc("/tags/{tag}/group", adminSetTagGroup).Methods(http.MethodPost)
	logger.Info("admin_routes_registered")
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get("X-Role-Name") == "admin"
}

func adminHealth(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"loomdb"}`))
}

func adminStats(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		rels := map[string]int{}
		for _, attr := range []string{
			facts.RelOpenThread, facts.RelSubscribedThread, facts.RelThreadTag,
			facts.RelThreadGroup, facts.RelThreadMentioned, facts.RelMessageThread,
			facts.RelGroupUser, facts.RelTagGroup,
		} {
			n, err := facts.CountCurrent(attr)
			if err != nil {
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
				return
			}
			rels[attr] = n
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
			"relations":     rels,
			"disk_bytes":    facts.DiskUsage(),
			"queue_depth":   q.Len(),
			"queue_dropped": q.Dropped(),
		})
	}
}

// adminFactHistory dumps the full assert/retract history for one
// (attr, entity) pair, transaction order.
func adminFactHistory(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	hist, err := facts.History(vars["attr"], vars["entity"])
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"history": hist})
}

func adminAddMember(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	var body struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	groupID := mux.Vars(r)["id"]
	if err := validation.ValidateID("group", groupID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateID("user", body.User); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, applied, err := facts.Apply(facts.Batch{facts.Assert(facts.RelGroupUser, groupID, body.User)})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	audit("group_member_added", "group", groupID, "user", body.User)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"tx": tx, "applied": applied})
}

func adminRemoveMember(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	tx, applied, err := facts.Apply(facts.Batch{facts.Retract(facts.RelGroupUser, vars["id"], vars["user"])})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	audit("group_member_removed", "group", vars["id"], "user", vars["user"])
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"tx": tx, "applied": applied})
}

// adminSetTagGroup records the tag's owning group, replacing any
// previous owner in the same transaction.
func adminSetTagGroup(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	var body struct {
		Group string `json:"group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	tag := mux.Vars(r)["tag"]
	if err := validation.ValidateTag(tag); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateID("group", body.Group); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := facts.Batch{}
	owners, err := facts.Values(facts.RelTagGroup, tag)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	for _, g := range owners {
		if g != body.Group {
			b = append(b, facts.Retract(facts.RelTagGroup, tag, g))
		}
	}
	b = append(b, facts.Assert(facts.RelTagGroup, tag, body.Group))
	tx, applied, err := facts.Apply(b)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	audit("tag_group_set", "tag", tag, "group", body.Group)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"tx": tx, "applied": applied})
}
