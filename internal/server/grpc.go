package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "medreport.v1.DocumentService"

// Metadata keys read by the request interceptor.
const (
	MetadataRequestID = "x-request-id"
	MetadataOwnerID   = "x-owner-id"
)

type unaryMethod func(*DocumentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, m unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(*DocumentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return m(srv.(*DocumentServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes DocumentService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		handler("Upload", (*DocumentServer).Upload),
		handler("Process", (*DocumentServer).Process),
		handler("GetDocument", (*DocumentServer).GetDocument),
		handler("ListDocuments", (*DocumentServer).ListDocuments),
		handler("GetReport", (*DocumentServer).GetReport),
		handler("ListErrors", (*DocumentServer).ListErrors),
		handler("ExportReports", (*DocumentServer).ExportReports),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medreport/v1/document_service.proto",
}

// NewGRPCServer builds a server with DocumentService, health and reflection registered.
func NewGRPCServer(svc *DocumentServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(requestInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(s)
	return s, hs
}

// requestInterceptor attaches request and owner ids from metadata and logs each call.
func requestInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(MetadataRequestID); len(v) > 0 {
				reqID = v[0]
			}
			if v := md.Get(MetadataOwnerID); len(v) > 0 {
				ctx = common.WithOwnerID(ctx, v[0])
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)

		resp, err := next(ctx, req)
		attrs := []any{"method", info.FullMethod, "req_id", reqID, "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "code", status.Code(err).String(), "err", err)...)
		} else {
			logger.Info("grpc.request.ok", attrs...)
		}
		return resp, err
	}
}
