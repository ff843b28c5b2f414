package handler

import (
	"encoding/json"
	"net/http"

	"github.com/p2p-lanes/MuOS-API/internal/application/cluster"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/validate"
	"github.com/p2p-lanes/MuOS-API/internal/transport/http/middleware"
)

// ClusterHandler handles account-cluster endpoints.
type ClusterHandler struct {
	svc cluster.Service
}

func NewClusterHandler(svc cluster.Service) *ClusterHandler { return &ClusterHandler{svc: svc} }

func (h *ClusterHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req cluster.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.svc.Initiate(r.Context(), claims.CitizenID, req.TargetEmail); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent to target email"})
}

func (h *ClusterHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req cluster.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := h.svc.Verify(r.Context(), claims.CitizenID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClusterEnvelope{Cluster: info, Message: "accounts linked"})
}

func (h *ClusterHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	info, err := h.svc.Get(r.Context(), claims.CitizenID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClusterEnvelope{Cluster: info})
}

func (h *ClusterHandler) Leave(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Leave(r.Context(), claims.CitizenID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "left cluster"})
}
