package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, nil, &b}

	m.Emit(models.ProgressEvent{Kind: models.KindBatchStart, Message: "one"})
	m.Emit(models.ProgressEvent{Kind: models.KindRunComplete, Message: "two"})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.Events(), 2)
	assert.Len(t, a.OfKind(models.KindRunComplete), 1)
}

func TestStampKeepsExistingTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, ts, Stamp(models.ProgressEvent{Timestamp: ts}).Timestamp)
	assert.False(t, Stamp(models.ProgressEvent{}).Timestamp.IsZero())
}

func TestBarSinkDrawsAndFinishes(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBarSink(&buf, "scraping")

	bar.Emit(models.ProgressEvent{Kind: models.KindBatchStart, Progress: models.NewProgress(0, 4)})
	bar.Emit(models.ProgressEvent{Kind: models.KindBatchComplete, Progress: models.NewProgress(2, 4)})
	bar.Emit(models.ProgressEvent{Kind: models.KindBatchComplete, Progress: models.NewProgress(4, 4)})
	bar.Emit(models.ProgressEvent{Kind: models.KindRunComplete})

	assert.Contains(t, buf.String(), "scraping")
	assert.Nil(t, bar.bar)
}

type mockStream struct {
	mock.Mock
}

func (m *mockStream) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	res := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if res.Get(0) != nil {
		cmd.SetErr(res.Error(0))
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

func TestRedisSinkPublishesToStream(t *testing.T) {
	client := &mockStream{}
	client.On("XAdd", mock.Anything, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		values, ok := args.Values.(map[string]interface{})
		return ok && args.Stream == "shopscrape:progress" && args.MaxLen == 1000 && args.Approx &&
			values["kind"] == "batch-complete" && values["run_id"] == "run-1"
	})).Return(nil).Once()
	client.On("XAdd", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

	sink := NewRedisSink(client, "shopscrape:progress", 1000)
	sink.Emit(models.ProgressEvent{Type: models.EventProgress, Kind: models.KindBatchComplete, RunID: "run-1"})
	sink.Emit(models.ProgressEvent{Type: models.EventError, Kind: models.KindError})
	require.NoError(t, sink.Close())

	// emitting after close is a no-op
	sink.Emit(models.ProgressEvent{Kind: models.KindRunComplete})

	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "XAdd", 2)
}

type wsConn struct {
	io.Reader
	io.Writer
}

func dialHub(t *testing.T, srv *httptest.Server) (io.ReadWriter, func()) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, br, _, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)

	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	return wsConn{Reader: r, Writer: conn}, func() { conn.Close() }
}

func readEvent(t *testing.T, rw io.ReadWriter) models.ProgressEvent {
	t.Helper()
	data, err := wsutil.ReadServerText(rw)
	require.NoError(t, err)
	var ev models.ProgressEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubGreetsAndBroadcasts(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	rw, closeConn := dialHub(t, srv)
	defer closeConn()

	greeting := readEvent(t, rw)
	assert.Equal(t, models.KindConnection, greeting.Kind)
	assert.Equal(t, models.EventInfo, greeting.Type)
	assert.False(t, greeting.Timestamp.IsZero())
	assert.Equal(t, 1, hub.Clients())

	hub.Emit(models.ProgressEvent{
		Type:     models.EventProgress,
		Kind:     models.KindBatchComplete,
		Message:  "Completed batch 1/2",
		Progress: models.NewProgress(3, 6),
	})

	ev := readEvent(t, rw)
	assert.Equal(t, models.KindBatchComplete, ev.Kind)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, 50.0, ev.Progress.Percentage)
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	rw, closeConn := dialHub(t, srv)
	readEvent(t, rw)
	require.Equal(t, 1, hub.Clients())

	closeConn()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// broadcasting with no clients must not block
	hub.Emit(models.ProgressEvent{Kind: models.KindRunComplete})
}
