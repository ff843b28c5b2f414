package handler

import (
	"encoding/json"
	"net/http"

	"github.com/p2p-lanes/MuOS-API/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ClusterEnvelope wraps account-cluster responses.
type ClusterEnvelope struct {
	Cluster *domain.ClusterInfo `json:"cluster,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// PaginatedCitizensEnvelope wraps cursor-paginated citizen lists.
type PaginatedCitizensEnvelope struct {
	Data       []domain.Citizen `json:"data"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
