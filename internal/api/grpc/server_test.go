package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/schema"
	"conversation-analytics-service/internal/service/conversation"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/store"
)

type testConversations struct {
	processErr error
}

func (c *testConversations) Process(_ context.Context, jobName string) (*conversation.Result, error) {
	if c.processErr != nil {
		return nil, c.processErr
	}
	return &conversation.Result{
		RunID:     "run-1",
		ResultURI: "file:///tmp/" + jobName + ".json",
		Record:    &models.Conversation{SpeechSegments: make([]models.SpeechSegmentRecord, 2)},
	}, nil
}

func (c *testConversations) Get(_ context.Context, jobName string) (*store.Summary, *models.Conversation, error) {
	if jobName != "call-1" {
		return nil, nil, fmt.Errorf("%s: %w", jobName, store.ErrNotFound)
	}
	rec := &models.Conversation{
		SpeechSegments: []models.SpeechSegmentRecord{{SegmentSpeaker: "spk_0", OriginalText: "Hello."}},
	}
	rec.ConversationAnalytics.LanguageCode = "en-US"
	return &store.Summary{JobName: jobName}, rec, nil
}

func dial(t *testing.T, c Conversations) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	srv := grpc.NewServer(grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)))
	Register(srv, c)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestProcessJob(t *testing.T) {
	client := dial(t, &testConversations{})

	out, err := client.ProcessJob(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	fields := out.GetFields()
	if fields["runId"].GetStringValue() != "run-1" || fields["turns"].GetNumberValue() != 2 {
		t.Errorf("unexpected response %v", out)
	}
}

func TestGetConversation(t *testing.T) {
	client := dial(t, &testConversations{})

	out, err := client.GetConversation(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	header := out.GetFields()["ConversationAnalytics"].GetStructValue()
	if header.GetFields()["LanguageCode"].GetStringValue() != "en-US" {
		t.Errorf("unexpected header %v", header)
	}
	segs := out.GetFields()["SpeechSegments"].GetListValue().GetValues()
	if len(segs) != 1 || segs[0].GetStructValue().GetFields()["OriginalText"].GetStringValue() != "Hello." {
		t.Errorf("unexpected segments %v", segs)
	}

	_, err = client.GetConversation(context.Background(), "unknown")
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestProcessJob_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		job  string
		err  error
		want codes.Code
	}{
		{"empty job name", "", nil, codes.InvalidArgument},
		{"not completed", "call-1", stt.ErrJobNotCompleted, codes.FailedPrecondition},
		{"invalid document", "call-1", schema.ErrInvalid, codes.InvalidArgument},
		{"limit exceeded", "call-1", conversation.ErrLimitExceeded, codes.InvalidArgument},
		{"process timeout", "call-1", fmt.Errorf("%w: call-1 exceeded 45m0s: %w", conversation.ErrLimitExceeded, context.DeadlineExceeded), codes.DeadlineExceeded},
		{"internal", "call-1", errors.New("disk full"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, &testConversations{processErr: tt.err})
			_, err := client.ProcessJob(context.Background(), tt.job)
			if status.Code(err) != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
