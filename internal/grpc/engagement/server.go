package engagement

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

// TurnService processes turns and exposes session snapshots
type TurnService interface {
	ProcessTurn(ctx context.Context, req models.TurnRequest) models.TurnResult
	Session(ctx context.Context, sessionID string) (models.SessionSnapshot, error)
}

// EventSource hands out filtered event subscriptions
type EventSource interface {
	Subscribe(sub *streaming.Subscription) (<-chan *streaming.Event, func())
}

// Server implements EngagementService
type Server struct {
	turns  TurnService
	events EventSource
	logger *logger.Logger
}

var _ EngagementServer = (*Server)(nil)

// NewServer creates a new gRPC server. events may be nil.
func NewServer(turns TurnService, events EventSource, log *logger.Logger) *Server {
	return &Server{
		turns:  turns,
		events: events,
		logger: log.WithComponent("grpc-server"),
	}
}

// Register registers the server with a gRPC server
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// ProcessTurn handles one turn. The request uses the /message JSON shape.
func (s *Server) ProcessTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, err := protojson.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request document")
	}

	turn, err := models.DecodeTurnRequest(data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.turns.ProcessTurn(ctx, turn)

	out, err := toStruct(result)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", turn.SessionID).Msg("failed to encode turn result")
		return nil, status.Error(codes.Internal, "failed to encode result")
	}
	return out, nil
}

// GetSession returns the accumulated state of a session
func (s *Server) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := stringField(req, "sessionId", "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId is required")
	}

	snapshot, err := s.turns.Session(ctx, sessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		return nil, status.Errorf(codes.NotFound, "session %s not found", sessionID)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session")
		return nil, status.Error(codes.Internal, "failed to load session")
	}

	out, err := toStruct(snapshot)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode session")
	}
	return out, nil
}

// StreamEvents streams engagement events until the client goes away.
// The request may filter by sessionId, scamOnly and types.
func (s *Server) StreamEvents(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.events == nil {
		return status.Error(codes.Unavailable, "event stream not available")
	}

	sub := subscriptionFrom(req)
	ch, unsubscribe := s.events.Subscribe(sub)
	defer unsubscribe()

	s.logger.Info().Str("session_id", sub.SessionID).Msg("client connected to event stream")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("client disconnected from event stream")
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			out, err := toStruct(event)
			if err != nil {
				s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to encode event")
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		}
	}
}

func subscriptionFrom(req *structpb.Struct) *streaming.Subscription {
	sub := &streaming.Subscription{
		SessionID: stringField(req, "sessionId", "session_id"),
	}
	if req == nil {
		return sub
	}

	for _, name := range []string{"scamOnly", "scam_only"} {
		if v, ok := req.GetFields()[name]; ok && v.GetBoolValue() {
			sub.ScamOnly = true
		}
	}
	if v, ok := req.GetFields()["types"]; ok {
		for _, t := range v.GetListValue().GetValues() {
			if name := t.GetStringValue(); name != "" {
				sub.Types = append(sub.Types, streaming.EventType(name))
			}
		}
	}
	return sub
}

func stringField(req *structpb.Struct, names ...string) string {
	for _, name := range names {
		if v := req.GetFields()[name].GetStringValue(); v != "" {
			return v
		}
	}
	return ""
}

// toStruct converts a JSON-tagged value into a Struct
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
