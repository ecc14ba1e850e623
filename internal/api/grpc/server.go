package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/schema"
	"conversation-analytics-service/internal/service/conversation"
	"conversation-analytics-service/internal/service/segment"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "conversationanalytics.v1.ConversationAnalyticsService"

// Full method names.
const (
	ProcessJobMethod      = "/" + ServiceName + "/ProcessJob"
	GetConversationMethod = "/" + ServiceName + "/GetConversation"
)

// ConversationAnalyticsServer is the server API. Requests carry the ASR job
// name; responses are the JSON forms of the results as protobuf Structs.
type ConversationAnalyticsServer interface {
	ProcessJob(ctx context.Context, jobName *wrapperspb.StringValue) (*structpb.Struct, error)
	GetConversation(ctx context.Context, jobName *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Conversations is the subset of the conversation handler the service uses.
type Conversations interface {
	Process(ctx context.Context, jobName string) (*conversation.Result, error)
	Get(ctx context.Context, jobName string) (*store.Summary, *models.Conversation, error)
}

// Server implements ConversationAnalyticsServer.
type Server struct {
	conversations Conversations
}

// Register registers the service on g.
func Register(g *grpc.Server, conversations Conversations) {
	g.RegisterService(&ServiceDesc, &Server{conversations: conversations})
}

// ProcessJob runs the named job through the engine.
func (s *Server) ProcessJob(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	jobName := req.GetValue()
	if jobName == "" {
		return nil, status.Error(codes.InvalidArgument, "job name is required")
	}

	res, err := s.conversations.Process(ctx, jobName)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"jobName":   jobName,
		"runId":     res.RunID,
		"resultUri": res.ResultURI,
		"turns":     len(res.Record.SpeechSegments),
	})
}

// GetConversation returns the stored record of a processed job.
func (s *Server) GetConversation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	jobName := req.GetValue()
	if jobName == "" {
		return nil, status.Error(codes.InvalidArgument, "job name is required")
	}

	_, record, err := s.conversations.Get(ctx, jobName)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(record)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, stt.ErrJobNotCompleted):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, schema.ErrInvalid),
		errors.Is(err, asr.ErrNoLabels),
		errors.Is(err, segment.ErrNoPronunciation),
		errors.Is(err, segment.ErrBadLabel),
		errors.Is(err, conversation.ErrLimitExceeded):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		log.Error().Err(err).Msg("gRPC request failed")
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func processJobHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConversationAnalyticsServer).ProcessJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessJobMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConversationAnalyticsServer).ProcessJob(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getConversationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConversationAnalyticsServer).GetConversation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetConversationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConversationAnalyticsServer).GetConversation(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the service for grpc.Server.RegisterService. The
// messages are well-known protobuf types, so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationAnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessJob", Handler: processJobHandler},
		{MethodName: "GetConversation", Handler: getConversationHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// Client calls the service over a client connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a client using conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// ProcessJob asks the service to process jobName.
func (c *Client) ProcessJob(ctx context.Context, jobName string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ProcessJobMethod, wrapperspb.String(jobName), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches the stored record of jobName.
func (c *Client) GetConversation(ctx context.Context, jobName string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetConversationMethod, wrapperspb.String(jobName), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
