// Package httpapi serves a JSON mirror of the Explorer RPCs for browser
// dashboards, together with health and Prometheus endpoints.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/datex/internal/core/api"
)

/*
 * Gateway workflow:
 *   1. Route by method and path (gorilla/mux)
 *   2. Decode the JSON body into a Struct and merge path parameters
 *      (the session ID) into it under the RPC field names
 *   3. Call the same ExplorerServer the gRPC server uses
 *   4. Write the reply as JSON, or the gRPC status as an HTTP error
 *
 * Routes:
 *   GET    /healthz
 *   GET    /metrics
 *   POST   /v1/sessions
 *   DELETE /v1/sessions/{id}
 *   POST   /v1/sessions/{id}/apply       body: Change
 *   POST   /v1/sessions/{id}/navigate    body: {"direction": "prior"|"next"}
 *   GET    /v1/sessions/{id}/series
 *   GET    /v1/catalog
 *   POST   /v1/reload
 */

// maxBody bounds request bodies; a Change document is small.
const maxBody = 1 << 20

type rpc func(context.Context, *structpb.Struct) (*structpb.Struct, error)

type gateway struct {
	service api.ExplorerServer
	logger  *slog.Logger
}

// NewOpsRouter serves only /healthz and, when metrics is non-nil, /metrics.
func NewOpsRouter(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

// NewRouter builds the gateway routes on top of NewOpsRouter.
func NewRouter(service api.ExplorerServer, metrics http.Handler, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	g := &gateway{service: service, logger: logger}
	r := NewOpsRouter(metrics)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", g.handle(service.OpenSession, "")).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", g.handle(service.CloseSession, "")).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{id}/apply", g.handle(service.Apply, "change")).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/navigate", g.handle(service.Navigate, "")).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/series", g.handle(service.Series, "")).Methods(http.MethodGet)
	v1.HandleFunc("/catalog", g.handle(service.Catalog, "")).Methods(http.MethodGet)
	v1.HandleFunc("/reload", g.handle(service.Reload, "")).Methods(http.MethodPost)
	return r
}

// Handler wraps the router with panic recovery, CORS, compression and a
// slog access log.
func Handler(router http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := handlers.CompressHandler(router)
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLog(logger))
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}

// handle adapts an RPC to HTTP. When wrap is set the request body becomes
// that field of the RPC message rather than the message itself.
func (g *gateway) handle(call rpc, wrap string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := readBody(r)
		if err != nil {
			writeError(w, status.Error(codes.InvalidArgument, err.Error()))
			return
		}
		if wrap != "" {
			in = &structpb.Struct{Fields: map[string]*structpb.Value{
				wrap: structpb.NewStructValue(in),
			}}
		}
		if id, ok := mux.Vars(r)["id"]; ok {
			in.Fields["sessionId"] = structpb.NewStringValue(id)
		}

		out, err := call(r.Context(), in)
		if err != nil {
			if status.Code(err) == codes.Internal {
				g.logger.Error("gateway call failed", "path", r.URL.Path, "error", err)
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func readBody(r *http.Request) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if r.Body == nil {
		return in, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return in, nil
	}
	if err := protojson.Unmarshal(data, in); err != nil {
		return nil, err
	}
	if in.Fields == nil {
		in.Fields = map[string]*structpb.Value{}
	}
	return in, nil
}

func writeJSON(w http.ResponseWriter, code int, out *structpb.Struct) {
	data, err := protojson.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// writeError renders a gRPC status as {"code": ..., "message": ...}.
func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	body := &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":    structpb.NewStringValue(st.Code().String()),
		"message": structpb.NewStringValue(st.Message()),
	}}
	writeJSON(w, httpStatus(st.Code()), body)
}

// httpStatus maps gRPC codes to HTTP status codes.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func accessLog(logger *slog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Debug("http",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"elapsed", time.Since(p.TimeStamp))
	}
}
