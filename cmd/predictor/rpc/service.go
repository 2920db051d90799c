// Package rpc exposes the predictor over gRPC as service gridcast.v1.Predictor.
//
// Requests and responses are google.protobuf.Struct messages carrying the
// same JSON shapes as the HTTP API, so no generated code is needed:
//
//	Predict: {"season": 2023, "race": "Bahrain Grand Prix"} → prediction
//	Drivers: {"season": 2023} → {"season": 2023, "drivers": ["VER", ...]}
//
// Domain errors map to gRPC codes: InvalidArgument for bad requests, NotFound
// for unknown races, Unavailable when the reference source is unreachable.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/gridcast/pkg/adapters"
	"github.com/HatiCode/gridcast/pkg/reference"
	"github.com/HatiCode/gridcast/pkg/report"
	"github.com/HatiCode/gridcast/pkg/timing"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gridcast.v1.Predictor"

// Predictor runs one prediction.
type Predictor interface {
	Predict(ctx context.Context, season int, race timing.Race) (*report.Prediction, error)
}

// Roster serves the season driver list.
type Roster interface {
	GetDrivers(ctx context.Context, season int) ([]timing.Driver, error)
}

// PredictorServer is the server API of gridcast.v1.Predictor.
type PredictorServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Drivers(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes gridcast.v1.Predictor for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "Drivers", Handler: driversHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gridcast/v1/predictor.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv PredictorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Predict"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func driversHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Drivers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Drivers"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Drivers(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements PredictorServer.
type Server struct {
	predictor Predictor
	roster    Roster
	logger    *slog.Logger
}

// NewServer creates a Server.
func NewServer(predictor Predictor, roster Roster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{predictor: predictor, roster: roster, logger: logger}
}

// Predict runs a prediction for {"season", "race"}.
func (s *Server) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()

	season, err := seasonField(req)
	if err != nil {
		return nil, err
	}
	race := timing.ParseRace(req.GetFields()["race"].GetStringValue())
	if race == "" {
		return nil, status.Error(codes.InvalidArgument, "race is required")
	}

	p, err := s.predictor.Predict(ctx, season, race)
	if err != nil {
		return nil, s.toStatus("Predict", err)
	}

	s.logger.Debug("grpc predict served",
		"season", season,
		"race", race,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return toStruct(p)
}

// Drivers returns the roster for {"season"}.
func (s *Server) Drivers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	season, err := seasonField(req)
	if err != nil {
		return nil, err
	}

	drivers, err := s.roster.GetDrivers(ctx, season)
	if err != nil {
		return nil, s.toStatus("Drivers", err)
	}

	return toStruct(map[string]any{"season": season, "drivers": drivers})
}

func (s *Server) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, reference.ErrRemoteUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, reference.ErrUnknownRace), errors.Is(err, adapters.ErrNoSessionData):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		s.logger.Error("grpc request failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func seasonField(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()["season"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "season is required")
	}
	n := v.GetNumberValue()
	if n != float64(int(n)) || n < 1950 || n > 9999 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid season %v", n)
	}
	return int(n), nil
}

// toStruct converts v through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
