package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/datex/internal/period"
)

// OpenSession starts a session from the rule-set defaults.
func (s *ExplorerService) OpenSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, state, err := s.openSession()
	if err != nil {
		return nil, statusFor(err)
	}
	return reply(OpenSessionResponse{SessionID: string(id), State: state})
}

// Apply changes a session's selection and returns the new state.
func (s *ExplorerService) Apply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ApplyRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.getSession(req.SessionID)
	if err != nil {
		return nil, statusFor(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	next, err := s.current().Apply(sess.state, req.Change)
	if err != nil {
		return nil, statusFor(err)
	}
	sess.state = next
	return reply(StateResponse{State: next})
}

// Navigate steps a session's active period.
func (s *ExplorerService) Navigate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req NavigateRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	dir, ok := period.ParseDirection(req.Direction)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "direction must be prior or next, got %q", req.Direction)
	}
	sess, err := s.getSession(req.SessionID)
	if err != nil {
		return nil, statusFor(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state = s.current().Navigate(sess.state, dir)
	return reply(StateResponse{State: sess.state})
}

// Series returns the chart series of a session's active period.
func (s *ExplorerService) Series(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.getSession(req.SessionID)
	if err != nil {
		return nil, statusFor(err)
	}

	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()

	return reply(SeriesResponse{
		Period: string(state.Selection.ActivePeriod),
		Series: s.current().Series(state),
	})
}

// Catalog returns the discovery result of the loaded dataset.
func (s *ExplorerService) Catalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(CatalogResponse{Catalog: s.current().Catalog()})
}

// CloseSession discards a session.
func (s *ExplorerService) CloseSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.closeSession(req.SessionID); err != nil {
		return nil, statusFor(err)
	}
	return &structpb.Struct{}, nil
}

// Reload re-reads the dataset and rebases every open session.
func (s *ExplorerService) Reload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.reload(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return reply(resp)
}

func reply(v interface{}) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
