package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/mediatab/internal/api/batches"
	"github.com/hbomb79/mediatab/internal/http/websocket"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsbility
	// is to create the routes mediatab exposes, and to manage ongoing web socket connections
	// and the activity updates pushed through them.
	RestGateway struct {
		*broadcaster
		config          *RestConfig
		ec              *echo.Echo
		socket          *websocket.SocketHub
		batchController controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the batch controller.
func NewRestGateway(config *RestConfig, batchService batches.Service) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:     newBroadcaster(socket, batchService),
		config:          config,
		ec:              ec,
		socket:          socket,
		batchController: batches.New(validator.New(), batchService),
	}

	socket.WithConnectionCallback(gateway.connectionPayload)
	socket.BindCommand(COMMAND_GET_BATCH, gateway.handleGetBatchCommand)

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/mediatab/v1/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	batchGroup := ec.Group("/api/mediatab/v1/batches")
	gateway.batchController.SetRoutes(batchGroup)

	return gateway
}

// ServeHTTP allows the gateway to be mounted directly on an http.Server, or
// driven by an httptest recorder.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.NEW, "Starting HTTP server on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
