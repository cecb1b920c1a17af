package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/api/batches"
	"github.com/hbomb79/mediatab/internal/api/util"
	"github.com/hbomb79/mediatab/internal/http/websocket"
	"github.com/hbomb79/mediatab/internal/job"
)

const (
	TITLE_BATCH_UPDATE   = "BATCH_UPDATE"
	TITLE_BATCH_PROGRESS = "BATCH_PROGRESS"

	COMMAND_GET_BATCH = "GET_BATCH"
)

type (
	BatchUpdate struct {
		BatchId uuid.UUID    `json:"batch_id"`
		Batch   *batches.Dto `json:"batch"`
	}

	BatchProgressUpdate struct {
		BatchId   uuid.UUID `json:"batch_id"`
		Completed int       `json:"completed"`
		Total     int       `json:"total"`
	}

	broadcaster struct {
		socketHub  *websocket.SocketHub
		batchStore batches.Service
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, batchStore batches.Service) *broadcaster {
	return &broadcaster{socketHub, batchStore}
}

// BroadcastBatchUpdate sends the full state of the batch to every connected client.
func (hub *broadcaster) BroadcastBatchUpdate(id uuid.UUID) error {
	model := hub.batchStore.GetBatch(id)
	if model == nil {
		return fmt.Errorf("cannot broadcast update for batch %s: batch not found", id)
	}

	hub.broadcast(TITLE_BATCH_UPDATE, BatchUpdate{BatchId: id, Batch: batches.NewDto(model, false)})
	return nil
}

// BroadcastBatchProgress sends only the progress counters of the batch, and is
// used for the high-frequency progress events emitted while a batch is running.
func (hub *broadcaster) BroadcastBatchProgress(id uuid.UUID) error {
	model := hub.batchStore.GetBatch(id)
	if model == nil {
		return fmt.Errorf("cannot broadcast progress for batch %s: batch not found", id)
	}

	batch := model.Batch()
	hub.broadcast(TITLE_BATCH_PROGRESS, BatchProgressUpdate{BatchId: id, Completed: batch.Completed(), Total: batch.Total()})
	return nil
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]interface{}{"arguments": update},
		Type:  websocket.Update,
	})
}

// connectionPayload furnishes newly connected clients with the current
// set of batches.
func (hub *broadcaster) connectionPayload() map[string]interface{} {
	return map[string]interface{}{
		"batches": util.ApplyConversion(hub.batchStore.GetAllBatches(), func(j *job.Job) *batches.Dto { return batches.NewDto(j, false) }),
	}
}

func (hub *broadcaster) handleGetBatchCommand(socket *websocket.SocketHub, command *websocket.SocketMessage) error {
	if err := command.ValidateArguments(map[string]string{"id": "uuid"}); err != nil {
		return err
	}

	id := uuid.MustParse(command.Body["id"].(string))
	model := hub.batchStore.GetBatch(id)
	if model == nil {
		return fmt.Errorf("batch %s not found", id)
	}

	socket.Send(command.FormReply("BATCH", map[string]interface{}{"batch": batches.NewDto(model, true)}, websocket.Response))
	return nil
}
