package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/explorer"
)

// OpenSessionResponse carries a new session and its initial state.
type OpenSessionResponse struct {
	SessionID string         `json:"sessionId"`
	State     explorer.State `json:"state"`
}

// SessionRequest names a session.
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// ApplyRequest changes a session's selection.
type ApplyRequest struct {
	SessionID string          `json:"sessionId"`
	Change    explorer.Change `json:"change"`
}

// NavigateRequest steps a session's active period.
type NavigateRequest struct {
	SessionID string `json:"sessionId"`
	Direction string `json:"direction"`
}

// StateResponse carries a session state.
type StateResponse struct {
	State explorer.State `json:"state"`
}

// SeriesResponse carries the chart series of the active period.
type SeriesResponse struct {
	Period string            `json:"period,omitempty"`
	Series []explorer.Series `json:"series"`
}

// CatalogResponse carries the discovery result.
type CatalogResponse struct {
	Catalog *catalog.Catalog `json:"catalog"`
}

// ReloadResponse summarizes a dataset reload.
type ReloadResponse struct {
	Rows      int  `json:"rows"`
	Unmatched int  `json:"unmatched"`
	Sessions  int  `json:"sessions"`
	Cached    bool `json:"cached"`
}

// encode converts a JSON-tagged value to a Struct.
func encode(v interface{}) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if v == nil {
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return out, nil
}

// decode converts a Struct into a JSON-tagged value.
func decode(in *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
