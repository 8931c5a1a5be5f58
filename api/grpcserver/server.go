// Package grpcserver adapts QuoteService to gRPC. The wire messages
// are protobuf well-known types and the service descriptor is written
// out by hand, so the API needs no generated stubs (see api/board.proto).
package grpcserver

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"swmr/domain/board"
	"swmr/service"
)

const serviceName = "swmr.v1.BoardService"

// BoardServer is the handler contract for the service descriptor.
type BoardServer interface {
	GetQuote(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server adapts QuoteService to the BoardServer contract.
type Server struct {
	svc *service.QuoteService
}

func NewServer(svc *service.QuoteService) *Server {
	return &Server{svc: svc}
}

// Register attaches the board service to a gRPC server.
func Register(s *grpc.Server, srv BoardServer) {
	s.RegisterService(&serviceDesc, srv)
}

// -------------------- Queries --------------------

func (s *Server) GetQuote(
	ctx context.Context,
	req *wrapperspb.StringValue,
) (*structpb.Struct, error) {
	q, ok := s.svc.Quote(req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown symbol %q", req.GetValue())
	}
	return quoteStruct(&q)
}

func (s *Server) Snapshot(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.ListValue, error) {
	quotes := s.svc.Snapshot()

	vals := make([]*structpb.Value, 0, len(quotes))
	for i := range quotes {
		st, err := quoteStruct(&quotes[i])
		if err != nil {
			return nil, err
		}
		vals = append(vals, structpb.NewStructValue(st))
	}

	log.Printf("[gRPC] Snapshot served: %d quotes", len(vals))
	return &structpb.ListValue{Values: vals}, nil
}

func (s *Server) Stats(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	st := s.svc.Stats()
	return structpb.NewStruct(map[string]any{
		"epoch":           st.Epoch,
		"last_seq":        st.LastSeq,
		"symbols":         st.Symbols,
		"pending_garbage": st.PendingGarbage,
	})
}

// -------------------- Converters --------------------

func quoteStruct(q *board.Quote) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"symbol":   q.Symbol,
		"bid":      q.Bid,
		"ask":      q.Ask,
		"bid_size": q.BidSize,
		"ask_size": q.AskSize,
		"seq":      q.Seq,
		"updated":  q.Updated,
	})
}

// -------------------- Service descriptor --------------------

func getQuoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardServer).GetQuote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetQuote"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BoardServer).GetQuote(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Snapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BoardServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BoardServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BoardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQuote", Handler: getQuoteHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/board.proto",
}
