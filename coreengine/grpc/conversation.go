// Package grpc exposes the conversation orchestrator as a gRPC service.
//
// Requests and responses are google.protobuf.Struct payloads, so clients in
// any language can drive a session without generated stubs:
//
//	synapse.v1.ConversationService/StartSession  {user_id}
//	synapse.v1.ConversationService/SendMessage   {session_id, text, stage?}
//	synapse.v1.ConversationService/GetProgress   {session_id}
//	synapse.v1.ConversationService/GetArtefact   {session_id, stage}
//	synapse.v1.ConversationService/EndSession    {session_id}
//	synapse.v1.ConversationService/ListStages    {}
package grpc

import (
	"context"
	"fmt"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/orchestrator"
	"github.com/jeeves-cluster-organization/synapse/coreengine/progression"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "synapse.v1.ConversationService"

// ConversationServiceServer is the server API for ConversationService.
type ConversationServiceServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProgress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetArtefact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStages(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ConversationServer implements ConversationServiceServer over an orchestrator.Service.
type ConversationServer struct {
	svc    *orchestrator.Service
	logger logging.Logger
}

// NewConversationServer creates a ConversationServer.
func NewConversationServer(svc *orchestrator.Service, logger logging.Logger) *ConversationServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ConversationServer{svc: svc, logger: logger.Bind("component", "grpc")}
}

// Logger returns the server logger.
func (s *ConversationServer) Logger() logging.Logger { return s.logger }

// =============================================================================
// Session Operations
// =============================================================================

// StartSession creates a session and returns its welcome transcript.
func (s *ConversationServer) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess := s.svc.Start(ctx, stringField(req, "user_id"))
	s.logger.Debug("session_started", "session_id", sess.ID)

	return newStruct("start session", map[string]any{
		"session_id": sess.ID,
		"messages":   messageList(sess.Messages),
		"warnings":   stringList(s.svc.Orchestrator().Warnings()),
	})
}

// SendMessage runs one turn. Turn failures come back as warning records in
// a successful response; only transport-level problems are status errors.
func (s *ConversationServer) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	text, err := requiredString(req, "text")
	if err != nil {
		return nil, err
	}

	var override config.Stage
	if label := stringField(req, "stage"); label != "" {
		stage, ok := s.svc.Orchestrator().Registry().ParseStage(label)
		if !ok {
			return nil, NotFound("stage", label)
		}
		override = stage
	}

	res, err := s.svc.Send(ctx, id, text, override)
	if err != nil {
		return nil, toStatus("send message", id, err)
	}
	return newStruct("send message", turnPayload(res))
}

// GetProgress returns per-stage completion for a session.
func (s *ConversationServer) GetProgress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	snap, err := s.svc.Snapshot(ctx, id)
	if err != nil {
		return nil, toStatus("get progress", id, err)
	}
	statuses := s.svc.Orchestrator().Progress(&snap)

	return newStruct("get progress", map[string]any{
		"session_id":         id,
		"current_stage":      string(snap.CurrentStage),
		"pending_suggestion": string(snap.PendingSuggestion),
		"turns":              snap.Turns,
		"progress":           progressList(statuses),
		"rendered":           progression.RenderProgress(statuses),
		"done":               progression.Done(statuses),
	})
}

// GetArtefact returns the latest record stored for a stage.
func (s *ConversationServer) GetArtefact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	label, err := requiredString(req, "stage")
	if err != nil {
		return nil, err
	}
	stage, ok := s.svc.Orchestrator().Registry().ParseStage(label)
	if !ok {
		return nil, NotFound("stage", label)
	}

	snap, err := s.svc.Snapshot(ctx, id)
	if err != nil {
		return nil, toStatus("get artefact", id, err)
	}
	rec, ok := snap.Artefact(stage)
	if !ok {
		return nil, NotFound("artefact", fmt.Sprintf("%s/%s", id, stage))
	}

	return newStruct("get artefact", map[string]any{
		"session_id": id,
		"stage":      string(stage),
		"record":     recordPayload(rec),
		"rendered":   decoder.Render(rec),
	})
}

// EndSession deletes a session.
func (s *ConversationServer) EndSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	if err := s.svc.End(ctx, id); err != nil {
		return nil, toStatus("end session", id, err)
	}
	return newStruct("end session", map[string]any{"session_id": id, "ended": true})
}

// ListStages returns the pipeline in order.
func (s *ConversationServer) ListStages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	registry := s.svc.Orchestrator().Registry()
	defs := registry.Definitions()
	stages := make([]any, len(defs))
	for i, def := range defs {
		stages[i] = map[string]any{
			"key":   string(def.Key),
			"title": def.Title,
			"order": def.Order,
		}
	}
	return newStruct("list stages", map[string]any{
		"pipeline": registry.Name,
		"stages":   stages,
	})
}

// =============================================================================
// Payload Conversion
// =============================================================================

func newStruct(operation string, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, Internal(operation, err)
	}
	return out, nil
}

func turnPayload(res *orchestrator.TurnResult) map[string]any {
	return map[string]any{
		"turn_id":         res.TurnID,
		"stage":           string(res.Decision.Stage),
		"reason":          string(res.Decision.Reason),
		"acknowledgement": res.Acknowledgement,
		"record":          recordPayload(res.Record),
		"rendered":        res.Rendered,
		"suggestion":      string(res.Suggestion),
		"suggestion_text": res.SuggestionText,
		"progress":        progressList(res.Progress),
		"warnings":        stringList(res.Warnings),
		"messages":        messageList(res.Appended),
		"degraded":        res.Degraded(),
		"duration_ms":     res.DurationMS,
	}
}

func recordPayload(rec decoder.Record) map[string]any {
	fields, _ := decoder.ToNative(rec.Mapping()).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return map[string]any{
		"fields":   fields,
		"strategy": string(rec.Strategy),
		"degraded": rec.Degraded,
		"warning":  rec.Warning,
	}
}

func progressList(statuses []progression.StageStatus) []any {
	out := make([]any, len(statuses))
	for i, st := range statuses {
		out[i] = map[string]any{
			"stage":     string(st.Stage),
			"title":     st.Title,
			"completed": st.Completed,
		}
	}
	return out
}

func messageList(msgs []session.Message) []any {
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = map[string]any{
			"role":    m.Role,
			"content": m.Content,
			"stage":   string(m.Stage),
		}
	}
	return out
}

func stringList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// =============================================================================
// Service Registration
// =============================================================================

// RegisterConversationServiceServer registers srv on s.
func RegisterConversationServiceServer(s grpc.ServiceRegistrar, srv ConversationServiceServer) {
	s.RegisterService(&ConversationServiceDesc, srv)
}

type conversationCall func(ConversationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call conversationCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConversationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConversationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConversationServiceDesc is the grpc.ServiceDesc for ConversationService.
var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler("StartSession", ConversationServiceServer.StartSession)},
		{MethodName: "SendMessage", Handler: unaryHandler("SendMessage", ConversationServiceServer.SendMessage)},
		{MethodName: "GetProgress", Handler: unaryHandler("GetProgress", ConversationServiceServer.GetProgress)},
		{MethodName: "GetArtefact", Handler: unaryHandler("GetArtefact", ConversationServiceServer.GetArtefact)},
		{MethodName: "EndSession", Handler: unaryHandler("EndSession", ConversationServiceServer.EndSession)},
		{MethodName: "ListStages", Handler: unaryHandler("ListStages", ConversationServiceServer.ListStages)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "synapse/v1/conversation.proto",
}

// =============================================================================
// Client
// =============================================================================

// ConversationClient is a thin client for ConversationService.
type ConversationClient struct {
	cc grpc.ClientConnInterface
}

// NewConversationClient wraps a client connection.
func NewConversationClient(cc grpc.ClientConnInterface) *ConversationClient {
	return &ConversationClient{cc: cc}
}

// Call invokes method with a request built from fields.
func (c *ConversationClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
