package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/rpc"
)

// RPC method names served by RegisterRPC.
const (
	MethodQuery = "Search.Query"
	MethodStats = "Search.Stats"
)

// QueryRequest is the parameter of Search.Query.
type QueryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// RegisterRPC exposes search and generation stats on s.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register(MethodQuery, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req QueryRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding query request: %w", err)
		}
		query := strings.TrimSpace(req.Query)
		if query == "" || len(query) > maxQueryLen {
			return nil, fmt.Errorf("query must be 1 to %d bytes", maxQueryLen)
		}
		limit := req.Limit
		if limit <= 0 {
			limit = h.opts.DefaultLimit
		}
		return h.search(ctx, query, min(limit, h.opts.MaxResults))
	})
	s.Register(MethodStats, func(context.Context, json.RawMessage) (any, error) {
		m, ok := h.executor.Manifest()
		if !ok {
			return nil, fmt.Errorf("no index generation loaded")
		}
		return m, nil
	})
}
