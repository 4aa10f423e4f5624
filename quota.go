package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/quota/gateway"
	"github.com/xraph/quota/lock"
	"github.com/xraph/quota/notify"
	"github.com/xraph/quota/plugin"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/store"
)

// DefaultPalette is the set of colors new packages are drawn from.
var DefaultPalette = []string{
	"#1E88E5", "#43A047", "#FB8C00", "#8E24AA",
	"#E53935", "#00ACC1", "#3949AB", "#F4511E",
}

// Engine is the subscription commerce engine.
type Engine struct {
	store    store.Store
	catalog  *pricing.Catalog
	gateway  gateway.Gateway
	notifier notify.Sender
	locker   lock.Locker
	plugins  *plugin.Registry
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	pick     func(n int) int

	// Configuration
	palette     []string
	catalogSize int
	catalogTTL  time.Duration
	lockTimeout time.Duration
	skipMigrate bool
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		plugins:     plugin.NewRegistry(),
		logger:      slog.Default(),
		locker:      lock.NewLocal(),
		validate:    newValidator(),
		now:         time.Now,
		pick:        rand.IntN,
		palette:     DefaultPalette,
		catalogSize: 64,
		catalogTTL:  5 * time.Minute,
		lockTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.notifier == nil {
		e.notifier = notify.NewLogSender(e.logger)
	}
	e.catalog = pricing.NewCatalog(s, e.catalogSize, e.catalogTTL)

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithGateway sets the payment gateway used to create billing plans.
func WithGateway(g gateway.Gateway) Option {
	return func(e *Engine) { e.gateway = g }
}

// WithNotifier sets the email sender.
func WithNotifier(n notify.Sender) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLocker sets the per-group lock used by view charging.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLockTimeout bounds how long view charging waits for its group lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// WithPalette sets the colors new packages are drawn from.
func WithPalette(colors ...string) Option {
	return func(e *Engine) {
		if len(colors) > 0 {
			e.palette = colors
		}
	}
}

// WithCatalogCache sizes the pricing catalog cache.
func WithCatalogCache(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		e.catalogSize = size
		e.catalogTTL = ttl
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithoutMigrate makes Start skip store migrations.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Catalog returns the pricing catalog.
func (e *Engine) Catalog() *pricing.Catalog { return e.catalog }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("quota: migrate: %w", err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("quota started",
		"plugins", e.plugins.Count(),
		"gateway", e.gateway != nil,
		"catalog_ttl", e.catalogTTL,
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates v's struct tags and converts failures to ValidationError.
func (e *Engine) check(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var multi MultiError
	for _, fe := range verrs {
		multi.Add(ValidationError{Field: fe.Namespace(), Message: describe(fe)})
	}
	if len(multi.Errors) == 1 {
		return multi.First()
	}
	return multi
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return "must have length " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
