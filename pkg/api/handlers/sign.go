package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"loomdb/pkg/config"
	"loomdb/pkg/utils"
	"loomdb/pkg/validation"
)

// RegisterSign registers the signing helper used by trusted backends to
// mint user signatures for their frontend clients.
func RegisterSign(r *mux.Router) {
	r.HandleFunc("/sign", signUser).Methods(http.MethodPost)
}

func signUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	role := r.Header.Get("X-Role-Name")
	if role != "backend" && role != "admin" {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	var body struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := validation.ValidateID("user", body.User); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	keys := config.GetSigningKeys()
	if len(keys) == 0 {
		http.Error(w, `{"error":"no signing keys configured"}`, http.StatusInternalServerError)
		return
	}
	var key string
	for k := range keys {
		key = k
		break
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(body.User))
	sig := hex.EncodeToString(mac.Sum(nil))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"user": body.User, "signature": sig})
}
