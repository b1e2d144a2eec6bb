package handlers

import (
	"encoding/json"
	"net/http"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithReply returns the text the relay should post back into the
// channel the command came from. An empty reply means the bot already
// produced its own output (for example the re-posted submission).
func respondWithReply(w http.ResponseWriter, reply string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
