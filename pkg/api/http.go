package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"loomdb/pkg/api/handlers"
	"loomdb/pkg/ingest/queue"
)

// NewRouter builds the application router. The ingest queue is injected
// so message posting can enqueue without importing wiring from here.
func NewRouter(q *queue.Queue) *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterThreads(v1)
	handlers.RegisterInbox(v1)
	handlers.RegisterMessages(v1, q)
	handlers.RegisterSign(v1)

	admin := r.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin, q)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	return r
}
