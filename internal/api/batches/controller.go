package batches

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/api/util"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/labstack/echo/v4"
)

var (
	// ErrRowsUnavailable is returned by the service when rows cannot be listed
	// because the database mirror is disabled.
	ErrRowsUnavailable = errors.New("row storage is not enabled")

	// ErrServiceUnavailable is returned by the service when batches cannot be
	// accepted, such as while shutting down.
	ErrServiceUnavailable = errors.New("service unavailable")
)

type (
	CreateRequest struct {
		Paths   []string `json:"paths" validate:"required,min=1,dive,required"`
		Profile string   `json:"profile" validate:"omitempty,oneof=framerate attributes"`
		Output  string   `json:"output"`
	}

	Service interface {
		SubmitBatch(paths []string, profile media.Profile, output string) (*job.Job, error)
		GetAllBatches() []*job.Job
		GetBatch(uuid.UUID) *job.Job
		GetBatchRows(uuid.UUID) ([]*sink.StoredRow, error)
	}

	// Controller is the struct which is responsible for defining the
	// routes for this controller. Additionally, it holds the reference to
	// the service used to submit and retrieve batches.
	Controller struct {
		service  Service
		validate *validator.Validate
	}
)

func New(validate *validator.Validate, service Service) *Controller {
	return &Controller{service: service, validate: validate}
}

// SetRoutes accepts the Echo group for the batch endpoints
// and sets the routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.create)
	eg.GET("/", controller.list)
	eg.GET("/:id/", controller.get)
	eg.GET("/:id/skipped/", controller.skipped)
	eg.GET("/:id/rows/", controller.rows)
}

func (controller *Controller) create(ec echo.Context) error {
	var createRequest CreateRequest
	if err := ec.Bind(&createRequest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid body: %s", err.Error()))
	}

	if err := controller.validate.Struct(createRequest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid body: %s", err.Error()))
	}

	profile := media.FrameRateProfile
	if createRequest.Profile != "" {
		p, err := media.ParseProfile(createRequest.Profile)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		profile = p
	}

	model, err := controller.service.SubmitBatch(createRequest.Paths, profile, createRequest.Output)
	if errors.Is(err, ErrServiceUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("Failed to submit batch: %s", err.Error()))
	} else if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Failed to submit batch: %s", err.Error()))
	}

	return ec.JSON(http.StatusCreated, NewDto(model, false))
}

// list returns all the batches - represented as DTOs - from the underlying service.
func (controller *Controller) list(ec echo.Context) error {
	dtos := util.ApplyConversion(controller.service.GetAllBatches(), func(j *job.Job) *Dto { return NewDto(j, false) })
	return ec.JSON(http.StatusOK, dtos)
}

// get uses the 'id' path param from the context and retrieves the batch from the
// underlying service. If found, a DTO representing the batch (including it's items)
// is returned.
func (controller *Controller) get(ec echo.Context) error {
	model, err := controller.findBatch(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewDto(model, true))
}

func (controller *Controller) skipped(ec echo.Context) error {
	model, err := controller.findBatch(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(model.Skipped(), NewSkipDto))
}

func (controller *Controller) rows(ec echo.Context) error {
	model, err := controller.findBatch(ec)
	if err != nil {
		return err
	}

	rows, err := controller.service.GetBatchRows(model.ID())
	if errors.Is(err, ErrRowsUnavailable) {
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(rows, NewRowDto))
}

func (controller *Controller) findBatch(ec echo.Context) (*job.Job, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Batch ID is not a valid UUID")
	}

	model := controller.service.GetBatch(id)
	if model == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound)
	}

	return model, nil
}
