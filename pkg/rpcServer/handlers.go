package rpcServer

import (
	"net/http"

	"github.com/epochledger/epochledger/pkg/service/types"
)

func (s *RpcServer) ListEpochs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	query := r.URL.Query()
	pagination, err := types.ParsePagination(query.Get("limit"), query.Get("offset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledgerDataService.ListClosedEpochs(r.Context(), pagination)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *RpcServer) GetEpochAllocations(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	epochId, err := parseEpochIdParam(pathParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledgerDataService.GetEpochAllocations(r.Context(), epochId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *RpcServer) GetEpochStatement(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	epochId, err := parseEpochIdParam(pathParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledgerDataService.GetEpochStatement(r.Context(), epochId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
