package engagement

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

type stubTurns struct {
	last models.TurnRequest
}

func (s *stubTurns) ProcessTurn(_ context.Context, req models.TurnRequest) models.TurnResult {
	s.last = req
	return models.TurnResult{ScamDetected: true, Reply: "Which branch sir?"}
}

func (s *stubTurns) Session(_ context.Context, id string) (models.SessionSnapshot, error) {
	if id != "known" {
		return models.SessionSnapshot{}, services.ErrSessionNotFound
	}
	return models.SessionSnapshot{SessionID: id, MessageCount: 4}, nil
}

func startServer(t *testing.T, turns TurnService, events EventSource) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewServer(turns, events, logger.NewNop()).Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	RegisterHealthServer(ctx, srv, map[string]HealthCheck{
		"noop": func(context.Context) error { return nil },
	}, time.Hour, logger.NewNop())

	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		cancel()
		srv.Stop()
	})
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestProcessTurn(t *testing.T) {
	turns := &stubTurns{}
	client := NewClient(startServer(t, turns, nil))

	req := mustStruct(t, map[string]any{
		"sessionId": "g1",
		"message":   map[string]any{"sender": "scammer", "text": "Update KYC now", "timestamp": 1700000000000.0},
		"metadata":  map[string]any{"channel": "SMS"},
	})

	resp, err := client.ProcessTurn(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if got := resp.GetFields()["reply"].GetStringValue(); got != "Which branch sir?" {
		t.Errorf("reply = %q", got)
	}
	if !resp.GetFields()["scamDetected"].GetBoolValue() {
		t.Error("scamDetected = false, want true")
	}
	if turns.last.SessionID != "g1" || turns.last.Channel != models.ChannelSMS {
		t.Errorf("request = %+v", turns.last)
	}
}

func TestProcessTurnInvalid(t *testing.T) {
	client := NewClient(startServer(t, &stubTurns{}, nil))

	_, err := client.ProcessTurn(context.Background(), mustStruct(t, map[string]any{"message": map[string]any{"text": "x"}}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestGetSession(t *testing.T) {
	client := NewClient(startServer(t, &stubTurns{}, nil))
	ctx := context.Background()

	resp, err := client.GetSession(ctx, mustStruct(t, map[string]any{"sessionId": "known"}))
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got := resp.GetFields()["messageCount"].GetNumberValue(); got != 4 {
		t.Errorf("messageCount = %v, want 4", got)
	}

	_, err = client.GetSession(ctx, mustStruct(t, map[string]any{"session_id": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}

	_, err = client.GetSession(ctx, mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestStreamEvents(t *testing.T) {
	bus := streaming.NewEventBus(nil, logger.NewNop())
	defer bus.Close()
	client := NewClient(startServer(t, &stubTurns{}, bus))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamEvents(ctx, mustStruct(t, map[string]any{"sessionId": "watched"}))
	if err != nil {
		t.Fatalf("StreamEvents() error = %v", err)
	}

	for bus.SubscriberCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscription never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	bus.Publish(ctx, streaming.NewTurnEvent(&models.TurnEvent{SessionID: "other"}))
	bus.Publish(ctx, streaming.NewTurnEvent(&models.TurnEvent{SessionID: "watched", ScamDetected: true}))

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if got := msg.GetFields()["session_id"].GetStringValue(); got != "watched" {
		t.Errorf("session_id = %q, want watched", got)
	}
	if got := msg.GetFields()["type"].GetStringValue(); got != string(streaming.EventTypeTurnProcessed) {
		t.Errorf("type = %q", got)
	}
}

func TestStreamEventsUnavailable(t *testing.T) {
	client := NewClient(startServer(t, &stubTurns{}, nil))

	stream, err := client.StreamEvents(context.Background(), mustStruct(t, map[string]any{}))
	if err != nil {
		t.Fatalf("StreamEvents() error = %v", err)
	}
	if _, err := stream.Recv(); status.Code(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", status.Code(err))
	}
}

func TestHealthServer(t *testing.T) {
	conn := startServer(t, &stubTurns{}, nil)
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestSubscriptionFrom(t *testing.T) {
	req, _ := structpb.NewStruct(map[string]any{
		"session_id": "s",
		"scamOnly":   true,
		"types":      []any{"report_delivered"},
	})
	sub := subscriptionFrom(req)
	if sub.SessionID != "s" || !sub.ScamOnly || len(sub.Types) != 1 || sub.Types[0] != streaming.EventTypeReportDelivered {
		t.Errorf("subscription = %+v", sub)
	}
}
