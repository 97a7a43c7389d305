// gRPC front end: health, reflection and a struct-typed Navigator service
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/pkg/memento"
	"github.com/nainya/mementod/pkg/snapshot"
)

// NavigatorService is the fully qualified gRPC service name
const NavigatorService = "mementod.v1.Navigator"

// Full method names, usable with grpc.ClientConn.Invoke
const (
	TimeGateMethod = "/" + NavigatorService + "/TimeGate"
	TimeMapMethod  = "/" + NavigatorService + "/TimeMap"
)

// navigatorServer exchanges google.protobuf.Struct messages so the service
// needs no generated code
type navigatorServer interface {
	TimeGate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TimeMap(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var navigatorServiceDesc = grpc.ServiceDesc{
	ServiceName: NavigatorService,
	HandlerType: (*navigatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TimeGate", Handler: unaryHandler(TimeGateMethod, navigatorServer.TimeGate)},
		{MethodName: "TimeMap", Handler: unaryHandler(TimeMapMethod, navigatorServer.TimeMap)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mementod/navigator",
}

func unaryHandler(fullMethod string, call func(navigatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(navigatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(navigatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// navigatorRPC adapts Service to navigatorServer
type navigatorRPC struct {
	service *Service
}

// TimeGate expects {"url": ..., "accept_datetime": optional HTTP date}
func (n *navigatorRPC) TimeGate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	url := fields["url"].GetStringValue()
	if url == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}

	var target *time.Time
	if raw := fields["accept_datetime"].GetStringValue(); raw != "" {
		t, err := http.ParseTime(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "malformed accept_datetime %q", raw)
		}
		target = &t
	}

	neg, err := n.service.Negotiate(ctx, url, target)
	if err != nil {
		return nil, grpcError(err)
	}

	nav := neg.Navigator
	out := map[string]interface{}{
		"location": neg.Location,
		"link":     neg.Links,
		"outcome":  nav.Outcome().String(),
		"selected": mementoValue(nav.Selected()),
		"first":    mementoValue(nav.First()),
		"last":     mementoValue(nav.Last()),
		"next":     mementoValue(nav.Next()),
		"prev":     mementoValue(nav.Prev()),
	}
	return newStruct(out)
}

// TimeMap expects {"url": ...} and returns the link-format body
func (n *navigatorRPC) TimeMap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	url := req.GetFields()["url"].GetStringValue()
	if url == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}

	body, err := n.service.TimeMap(ctx, url)
	if err != nil {
		return nil, grpcError(err)
	}
	return newStruct(map[string]interface{}{"timemap": body})
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

// mementoValue renders m as a struct field; nil mementos become null
func mementoValue(m *memento.Memento) interface{} {
	if m == nil {
		return nil
	}
	v := map[string]interface{}{
		"collection": m.CollectionID,
		"resource":   m.ResourceID,
		"version":    m.Version,
		"index":      m.Index,
	}
	if m.HasTime() {
		v["datetime"] = m.Time.UTC().Format(time.RFC3339)
	}
	return v
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, snapshot.ErrNotFound), errors.Is(err, memento.ErrNoTimestamp):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// GrpcServer hosts the Navigator, health and reflection services
type GrpcServer struct {
	server *grpc.Server
	health *health.Server
	port   int
	log    *logger.Logger
}

// NewGrpcServer builds the gRPC server with metrics and logging interceptors
func NewGrpcServer(service *Service, m *metrics.Metrics, log *logger.Logger, port int) *GrpcServer {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(GrpcMetricsInterceptor(m, log)),
		grpc.MaxRecvMsgSize(4*1024*1024),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(NavigatorService, healthpb.HealthCheckResponse_SERVING)

	gs.RegisterService(&navigatorServiceDesc, &navigatorRPC{service: service})

	// Reflection for grpcurl/grpcui
	reflection.Register(gs)

	return &GrpcServer{server: gs, health: hs, port: port, log: log}
}

// Serve accepts connections on lis until the server stops
func (g *GrpcServer) Serve(lis net.Listener) error {
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server failed: %w", err)
	}
	return nil
}

// Start listens on the configured port and serves
func (g *GrpcServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	g.log.Info("Starting gRPC server").
		Str("addr", lis.Addr().String()).
		Send()
	return g.Serve(lis)
}

// Shutdown marks the server not serving and drains in-flight calls. When
// ctx expires first the remaining calls are cut off.
func (g *GrpcServer) Shutdown(ctx context.Context) error {
	g.log.Info("Shutting down gRPC server").Send()
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()
		return ctx.Err()
	}
}
