package rpcServer

import (
	"net/http"
	"strings"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
)

func (s *RpcServer) GetAllocationProof(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	epochId, err := parseEpochIdParam(pathParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userId := strings.TrimSpace(pathParams["userId"])
	if userId == "" {
		s.writeError(w, r, ledgerErrors.Validation(nil, "user id is required"))
		return
	}

	proof, err := s.proofsStore.GenerateAllocationProof(r.Context(), epochId, userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, proof)
}
