package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/api"
	"github.com/hbomb79/mediatab/internal/http/websocket"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

type staticService struct {
	sync.Mutex
	jobs []*job.Job
}

func (svc *staticService) SubmitBatch(paths []string, profile media.Profile, output string) (*job.Job, error) {
	svc.Lock()
	defer svc.Unlock()
	j := job.New(ingest.NewBatch(paths), profile, sink.Config{Path: output}, nil)
	svc.jobs = append(svc.jobs, j)
	return j, nil
}

func (svc *staticService) GetAllBatches() []*job.Job {
	svc.Lock()
	defer svc.Unlock()
	return append([]*job.Job(nil), svc.jobs...)
}

func (svc *staticService) GetBatch(id uuid.UUID) *job.Job {
	for _, j := range svc.GetAllBatches() {
		if j.ID() == id {
			return j
		}
	}

	return nil
}

func (svc *staticService) GetBatchRows(uuid.UUID) ([]*sink.StoredRow, error) {
	return nil, nil
}

func startGateway(t *testing.T, svc *staticService) (*api.RestGateway, *gorilla.Conn) {
	gateway := api.NewRestGateway(&api.RestConfig{HostAddr: "127.0.0.1:0"}, svc)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- gateway.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-stopped)
	})

	server := httptest.NewServer(gateway)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/mediatab/v1/activity/ws/"
	var conn *gorilla.Conn
	require.EventuallyWithT(t, func(c *assert.CollectT) {
		var err error
		conn, _, err = gorilla.DefaultDialer.Dial(url, nil)
		assert.NoError(c, err)
	}, 5*time.Second, 10*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })

	return gateway, conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) websocket.SocketMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg websocket.SocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRestGateway_BatchRoutes(t *testing.T) {
	t.Parallel()

	svc := &staticService{}
	gateway := api.NewRestGateway(&api.RestConfig{}, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/mediatab/v1/batches", strings.NewReader(`{"paths": ["/a.mxf"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.GetAllBatches(), 1)

	rec = httptest.NewRecorder()
	gateway.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mediatab/v1/batches/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRestGateway_Activity(t *testing.T) {
	t.Parallel()

	svc := &staticService{}
	existing, _ := svc.SubmitBatch([]string{"/a.mxf"}, media.FrameRateProfile, "results.csv")
	gateway, conn := startGateway(t, svc)

	welcome := readMessage(t, conn)
	assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
	require.Contains(t, welcome.Body, "batches")
	assert.Len(t, welcome.Body["batches"], 1)

	require.NoError(t, gateway.BroadcastBatchUpdate(existing.ID()))
	update := readMessage(t, conn)
	assert.Equal(t, api.TITLE_BATCH_UPDATE, update.Title)
	assert.Equal(t, websocket.Update, update.Type)

	require.NoError(t, gateway.BroadcastBatchProgress(existing.ID()))
	progress := readMessage(t, conn)
	assert.Equal(t, api.TITLE_BATCH_PROGRESS, progress.Title)
	args, ok := progress.Body["arguments"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), args["completed"])
	assert.Equal(t, float64(1), args["total"])

	assert.Error(t, gateway.BroadcastBatchUpdate(uuid.New()))
}

func TestRestGateway_GetBatchCommand(t *testing.T) {
	t.Parallel()

	svc := &staticService{}
	existing, _ := svc.SubmitBatch([]string{"/a.mxf", "/b.mxf"}, media.AttributesProfile, "results.csv")
	_, conn := startGateway(t, svc)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"title":     api.COMMAND_GET_BATCH,
		"type":      int(websocket.Command),
		"id":        3,
		"arguments": map[string]interface{}{"id": existing.ID().String()},
	}))
	reply := readMessage(t, conn)
	assert.Equal(t, "BATCH", reply.Title)
	assert.Equal(t, 3, reply.Id)
	batch, ok := reply.Body["batch"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, batch["items"], 2)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"title":     api.COMMAND_GET_BATCH,
		"type":      int(websocket.Command),
		"id":        4,
		"arguments": map[string]interface{}{"id": "nope"},
	}))
	failure := readMessage(t, conn)
	assert.Equal(t, "COMMAND_FAILURE", failure.Title)
	assert.Equal(t, 4, failure.Id)
}
