package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/persistence"
	"github.com/example/listening-monitor/internal/timeline"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Calendar    timeline.Calendar
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with a reference clock, a
// UTC calendar and a discarding logger.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(0),
		Calendar:    timeline.NewCalendar(time.UTC),
		Logger:      DiscardLogger(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator(0)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the session suffix generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithCalendar overrides the calendar used by analytics.
func WithCalendar(calendar timeline.Calendar) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Calendar = calendar
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewLifecycleService builds a lifecycle service over store.
func (f *ServiceFactory) NewLifecycleService(store persistence.Store) *application.LifecycleService {
	return application.NewLifecycleServiceWithLogger(store, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewAnalyticsService builds an analytics service over store. A zero
// stuckThreshold selects the default.
func (f *ServiceFactory) NewAnalyticsService(store persistence.Store, stuckThreshold time.Duration) *application.AnalyticsService {
	return application.NewAnalyticsServiceWithLogger(store, f.Calendar, stuckThreshold, f.Clock.NowFunc(), f.Logger)
}

// NewRetentionService builds a retention service over store.
func (f *ServiceFactory) NewRetentionService(store persistence.Store) *application.RetentionService {
	return application.NewRetentionServiceWithLogger(store, f.Clock.NowFunc(), f.Logger)
}

// NewDirectoryService builds a directory service over store.
func (f *ServiceFactory) NewDirectoryService(store persistence.Store) *application.DirectoryService {
	return application.NewDirectoryService(store, f.Logger)
}
