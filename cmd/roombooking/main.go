package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/config"
	httptransport "github.com/example/roombooking/internal/http"
	"github.com/example/roombooking/internal/notify"
	"github.com/example/roombooking/internal/persistence/sqlite"
	"github.com/example/roombooking/internal/realtime"
	"github.com/example/roombooking/internal/recurrence"
	"github.com/example/roombooking/internal/timeslot"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wired, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer wired.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           wired.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: calendar event streams stay open. They end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room booking API listening", "addr", server.Addr, "realtime_backend", cfg.RealtimeBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired HTTP handler and the resources it owns.
type app struct {
	Handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

type feed interface {
	realtime.Feed
	realtime.Publisher
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load time zone %s: %w", cfg.Timezone, err)
	}

	changes, err := newFeed(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.SQLiteDSN,
		sqlite.WithLocation(loc),
		sqlite.WithLogger(logger),
		sqlite.WithPublisher(changes),
	)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	sink, err := newSink(cfg, logger, a)
	if err != nil {
		return nil, err
	}

	engine := recurrence.NewEngine(loc).WithHorizon(cfg.RecurrenceHorizon)
	expander := application.NewExpander(engine)
	bookingRepo := sqlite.NewBookingRepository(store, expander.OverlapGuard())
	roomRepo := sqlite.NewRoomRepository(store)
	categoryRepo := sqlite.NewCategoryRepository(store)

	bookingService := application.NewBookingService(application.BookingServiceDeps{
		Bookings:    bookingRepo,
		Rooms:       roomRepo,
		Expander:    expander,
		Sink:        sink,
		IDGenerator: uuid.NewString,
		Location:    loc,
		Logger:      logger,
	})
	calendarService := application.NewCalendarService(application.CalendarServiceDeps{
		Rooms:      roomRepo,
		Categories: categoryRepo,
		Bookings:   bookingRepo,
		Expander:   expander,
		Sink:       sink,
		Slots:      timeslot.Slots(cfg.SlotStartHour, cfg.SlotEndHour, cfg.SlotIntervalMinutes),
		Location:   loc,
		Logger:     logger,
	})
	roomService := application.NewRoomServiceWithLogger(roomRepo, categoryRepo, uuid.NewString, time.Now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Bookings: httptransport.NewBookingHandler(bookingService, loc, logger),
		Calendar: httptransport.NewCalendarHandler(httptransport.CalendarHandlerConfig{
			Service: calendarService,
			Feed:    changes,
			Sink:    sink,
			Slots: httptransport.SlotConfig{
				StartHour:       cfg.SlotStartHour,
				EndHour:         cfg.SlotEndHour,
				IntervalMinutes: cfg.SlotIntervalMinutes,
			},
			Logger: logger,
		}),
		Rooms: httptransport.NewRoomHandler(roomService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequirePrincipal(logger),
		},
	})

	a.Handler = router
	return a, nil
}

// newFeed selects the change feed. The in-process hub only reaches views
// served by this instance.
func newFeed(ctx context.Context, cfg config.Config, logger *slog.Logger, a *app) (feed, error) {
	switch cfg.RealtimeBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return realtime.NewRedisFeed(client, cfg.RedisChannel, logger), nil
	default:
		return realtime.NewHub(), nil
	}
}

func newSink(cfg config.Config, logger *slog.Logger, a *app) (notify.Sink, error) {
	sinks := notify.Multi{notify.NewLogSink(logger)}
	if cfg.AMQPURL == "" {
		return sinks, nil
	}
	amqpSink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, amqpSink.Close)
	return append(sinks, amqpSink), nil
}
