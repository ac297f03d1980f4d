// Package grpc implements the gRPC transport for readaloud.
//
// The Speech service is described by a hand-written service descriptor and
// carries JSON messages, selected by the "json" content-subtype. The standard
// gRPC health service runs on the same server with the default protobuf codec.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transport"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "readaloud.v1.Speech"

	// SpeakMethod is the full method path of Speech/Speak.
	SpeakMethod = "/" + ServiceName + "/Speak"

	codecName = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// SpeakRequest is the request message of Speech/Speak.
type SpeakRequest struct {
	Text     string          `json:"text"`
	Settings speech.Settings `json:"settings"`
}

// SpeechServer is the server API of the Speech service.
type SpeechServer interface {
	Speak(ctx context.Context, req *SpeakRequest) (*speech.Ready, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpeechServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Speak", Handler: speakHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "readaloud/v1/speech.proto",
}

func speakHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SpeakRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpeechServer).Speak(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SpeakMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SpeechServer).Speak(ctx, req.(*SpeakRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// speechServer adapts a transport.Handler to SpeechServer.
type speechServer struct {
	handler transport.Handler
}

func (s *speechServer) Speak(ctx context.Context, req *SpeakRequest) (*speech.Ready, error) {
	outcome := s.handler(ctx, req.Text, req.Settings)
	if outcome.Failed != nil {
		slog.Warn("grpc speak failed", "run_id", outcome.Failed.RunID, "kind", outcome.Failed.Kind)
		return nil, status.Errorf(Code(outcome.Failed.Kind), "%s: %s", outcome.Failed.Kind, outcome.Failed.Message)
	}
	return outcome.Ready, nil
}

// Code maps a failure kind to a gRPC status code.
func Code(kind speech.Kind) codes.Code {
	switch kind {
	case speech.KindConfiguration:
		return codes.FailedPrecondition
	case speech.KindEmptyResult, speech.KindInputTooLarge:
		return codes.InvalidArgument
	case speech.KindRateLimited:
		return codes.ResourceExhausted
	case speech.KindRemoteService, speech.KindFallbackService, speech.KindFallbackTimeout:
		return codes.Unavailable
	case speech.KindCancelled:
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport from its config section.
func New(cfg config.GRPCConfig) *Transport {
	t := &Transport{
		port:   cfg.Port,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(t.server, t.health)
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve registers the Speech service and serves on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server.RegisterService(&serviceDesc, &speechServer{handler: handler})
	t.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.health.Shutdown()
	t.server.GracefulStop()
	return nil
}

// Client calls the Speech service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Speak reads text aloud on the server.
func (c *Client) Speak(ctx context.Context, req *SpeakRequest, opts ...grpc.CallOption) (*speech.Ready, error) {
	out := new(speech.Ready)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, SpeakMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
