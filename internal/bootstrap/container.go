package bootstrap

import (
	"context"

	"research-agent-be/internal/config"
	"research-agent-be/internal/controller"
	"research-agent-be/internal/handler"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/service"
	"research-agent-be/internal/websocket"
	"research-agent-be/pkg/observability"

	pktNats "research-agent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	HealthController   controller.IHealthController
	QueryController    controller.IQueryController
	DocumentController controller.IDocumentController
	EventsHandler      *handler.EventsHandler

	// Background Services (Exposed for main.go to run)
	DocumentService   service.IDocumentService
	EventRelayService service.IEventRelayService

	WebSocketHub *websocket.Hub
	Logger       logger.ILogger
	Core         *Core

	closers []func()
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)

	sinks := []observability.Sink{
		observability.MetricsSink{},
		observability.TraceSink{},
		observability.NewBusSink(pubSub, cfg.Events.Topic, sysLogger),
	}
	if cfg.Events.EventLog != "" {
		sinks = append(sinks, observability.NewLogSink(logger.NewIsolatedLogger(cfg.Events.EventLog)))
	}
	sink := observability.NewMultiSink(sysLogger, sinks...)

	// 3. Pipeline
	core, err := NewCore(ctx, cfg, sink, sysLogger)
	if err != nil {
		pubSub.Close()
		return nil, err
	}

	// 4. Live event delivery
	wsLogger := logger.NewIsolatedLogger("logs/events_ws.log")
	wsHub := websocket.NewHub(core.Redis, wsLogger)
	go wsHub.Run(ctx)

	var forwarder service.EventForwarder
	if cfg.Events.NatsEnabled {
		natsPub, err := pktNats.NewPublisher(cfg.Events.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS, events stay local", map[string]interface{}{"error": err.Error()})
		} else {
			forwarder = natsPub
			core.closers = append(core.closers, natsPub.Close)
		}
	}

	// 5. Services
	queryService := service.NewQueryService(core.Orchestrator, core.Threads, sysLogger)
	documentService := service.NewDocumentService(core.Engine, core.Ingestor, sysLogger)
	relayService := service.NewEventRelayService(pubSub, cfg.Events.Topic, wsHub, forwarder, sysLogger)

	// 6. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		HealthController:   controller.NewHealthController(cfg.Tracing.ServiceName),
		QueryController:    controller.NewQueryController(queryService),
		DocumentController: controller.NewDocumentController(documentService),
		EventsHandler:      handler.NewEventsHandler(wsHub, wsLogger),

		DocumentService:   documentService,
		EventRelayService: relayService,

		WebSocketHub: wsHub,
		Logger:       sysLogger,
		Core:         core,

		closers: []func(){
			func() { pubSub.Close() },
			core.Close,
			func() { sysLogger.Sync() },
		},
	}, nil
}

// Close stops the event bus and releases external connections
func (c *Container) Close() error {
	for _, closeFn := range c.closers {
		closeFn()
	}
	return nil
}
