package batches

import (
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/api/util"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/sink"
)

type (
	// Dto is the response used by endpoints that return
	// batches (e.g., list, get, create)
	Dto struct {
		ID         uuid.UUID   `json:"id"`
		Profile    string      `json:"profile"`
		State      string      `json:"state"`
		Output     string      `json:"output"`
		CreatedAt  time.Time   `json:"created_at"`
		FinishedAt *time.Time  `json:"finished_at"`
		Sealed     bool        `json:"sealed"`
		Completed  int         `json:"completed"`
		Total      int         `json:"total"`
		Summary    *SummaryDto `json:"summary"`
		Error      *string     `json:"error"`
		Items      []ItemDto   `json:"items,omitempty"`
	}

	SummaryDto struct {
		Considered int    `json:"considered"`
		Succeeded  int    `json:"succeeded"`
		Skipped    int    `json:"skipped"`
		Message    string `json:"message"`
	}

	ItemDto struct {
		ID      uuid.UUID   `json:"id"`
		Path    string      `json:"source_path"`
		State   string      `json:"state"`
		Trouble *TroubleDto `json:"trouble"`
	}

	TroubleDto struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	SkipDto struct {
		Path    string `json:"path"`
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	RowDto struct {
		ID        uuid.UUID         `json:"id"`
		Path      string            `json:"path"`
		Profile   string            `json:"profile"`
		Fields    map[string]string `json:"fields"`
		CreatedAt time.Time         `json:"created_at"`
	}
)

// NewDto creates a batch DTO from the job provided. The items of the batch
// are only included if withItems is true.
func NewDto(model *job.Job, withItems bool) *Dto {
	batch := model.Batch()
	dto := &Dto{
		ID:         model.ID(),
		Profile:    model.Profile().String(),
		State:      model.State().String(),
		Output:     model.Output().Path,
		CreatedAt:  batch.CreatedAt(),
		FinishedAt: model.FinishedAt(),
		Sealed:     batch.Sealed(),
		Completed:  batch.Completed(),
		Total:      batch.Total(),
	}

	if summary := model.Summary(); summary != nil {
		dto.Summary = NewSummaryDto(summary)
	}

	if err := model.Err(); err != nil {
		msg := err.Error()
		dto.Error = &msg
	}

	if withItems {
		dto.Items = util.ApplyConversion(batch.Items(), NewItemDto)
	}

	return dto
}

func NewSummaryDto(summary *sink.Summary) *SummaryDto {
	return &SummaryDto{
		Considered: summary.Considered,
		Succeeded:  summary.Succeeded,
		Skipped:    summary.Skipped,
		Message:    summary.String(),
	}
}

func NewItemDto(item ingest.Item) ItemDto {
	dto := ItemDto{ID: item.ID, Path: item.Path, State: item.State.String()}
	if item.Trouble != nil {
		dto.Trouble = &TroubleDto{Type: item.Trouble.Type().String(), Message: item.Trouble.Error()}
	}

	return dto
}

func NewSkipDto(record ingest.SkipRecord) SkipDto {
	dto := SkipDto{Path: record.Path, Message: record.Reason()}
	if record.Trouble != nil {
		dto.Type = record.Trouble.Type().String()
	}

	return dto
}

func NewRowDto(row *sink.StoredRow) RowDto {
	return RowDto{
		ID:        row.ID,
		Path:      row.Path,
		Profile:   row.Profile,
		Fields:    *row.Fields.Get(),
		CreatedAt: row.CreatedAt,
	}
}
