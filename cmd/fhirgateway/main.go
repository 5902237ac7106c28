// Command fhirgateway boots the multi-tenant FHIR gateway: it loads process
// configuration, connects to Postgres (the shared-schema backend and the
// tenant store), wires every component from spec sections 4.1-4.6, and
// serves the result over HTTP until a termination signal arrives.
//
// Grounded on the teacher's cmd-less-but-layered wiring style (pkg/config's
// env-struct loading, pkg/pg's connect-then-migrate sequence, pkg/httpserver's
// graceful Run) — the teacher itself ships no cmd/main.go, so this entrypoint
// follows the composition order its own internal/api and pkg/* packages
// imply: config -> logger -> registry -> storage -> services -> router -> server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	appconfig "github.com/dmitrymomot/fhirgateway/pkg/config"
	"github.com/dmitrymomot/fhirgateway/pkg/blobstore"
	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/email"
	"github.com/dmitrymomot/fhirgateway/pkg/environment"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/httpserver"
	"github.com/dmitrymomot/fhirgateway/pkg/logger"
	fhirmongo "github.com/dmitrymomot/fhirgateway/pkg/mongo"
	"github.com/dmitrymomot/fhirgateway/pkg/opensearch"
	"github.com/dmitrymomot/fhirgateway/pkg/pg"
	"github.com/dmitrymomot/fhirgateway/pkg/plugin"
	"github.com/dmitrymomot/fhirgateway/pkg/profile"
	fhirredis "github.com/dmitrymomot/fhirgateway/pkg/redis"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/resource"
	"github.com/dmitrymomot/fhirgateway/pkg/searchparam"
	"github.com/dmitrymomot/fhirgateway/pkg/storage"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"

	"github.com/dmitrymomot/fhirgateway/examples/plugins"
	"github.com/dmitrymomot/fhirgateway/internal/api"
)

// AppConfig is the gateway's own environment surface, loaded via the same
// caarlos0/env-backed pkg/config.Load helper the teacher uses for every
// other *Config struct in the tree (pkg/pg.Config, pkg/redis.Config, ...).
type AppConfig struct {
	Env              string `env:"ENV" envDefault:"development"`
	Addr             string `env:"HTTP_ADDR" envDefault:":8080"`
	RegistryPath     string `env:"RESOURCE_REGISTRY_PATH" envDefault:"config/resources.yaml"`
	DefaultVersion   string `env:"DEFAULT_FHIR_VERSION" envDefault:"r5"`
	SharedSchema     string `env:"SHARED_SCHEMA" envDefault:"fhir"`
	TenantHeaderName string `env:"TENANT_HEADER_NAME" envDefault:"X-Tenant-ID"`
	DefaultTenantID  string `env:"DEFAULT_TENANT_ID" envDefault:"default"`

	// MultiTenancyEnabled mirrors spec section 4.2's "if multi-tenancy is
	// disabled, returns the configured default tenant id ignoring any header."
	MultiTenancyEnabled bool `env:"MULTI_TENANCY_ENABLED" envDefault:"true"`

	// ProfileValidatorEnabled mirrors spec section 6's PROFILE_VALIDATOR_ENABLED.
	ProfileValidatorEnabled bool   `env:"PROFILE_VALIDATOR_ENABLED" envDefault:"true"`
	ProfileValidatorMode    string `env:"PROFILE_VALIDATOR_MODE" envDefault:"strict"`

	// ProfileValidationCacheSize bounds the LRU cache wrapping the profile
	// validator: a conditional update retried after
	// a 412, or a client re-POSTing unchanged content, skips a redundant
	// validation pass. Zero disables caching entirely.
	ProfileValidationCacheSize int `env:"PROFILE_VALIDATION_CACHE_SIZE" envDefault:"1000"`

	AsyncPoolSize int `env:"PLUGIN_ASYNC_POOL_SIZE" envDefault:"4"`

	BlobBucket string `env:"BLOBSTORE_BUCKET"`

	// MongoDatabase names the database dedicated-backend Mongo collections
	// live in, consulted only when the registry configures at least one
	// resource type with dedicated_backend: mongo.
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"fhirgateway"`

	// TenantCacheBackend selects the tenant resolver's cache implementation
	// (spec section 4.2): "memory" (default, single-process) or "redis"
	// (shared across gateway instances, SPEC_FULL.md section 4.2).
	TenantCacheBackend string `env:"TENANT_CACHE_BACKEND" envDefault:"memory"`

	// Example plugin wiring (examples/plugins): illustrative, swappable
	// implementations of the plugin SPI per spec.md section 1 ("concrete
	// plugin implementations ... spec'd only by interface"). All default to
	// off; an operator opts in per-plugin.
	ExampleAuditPluginEnabled bool   `env:"EXAMPLE_AUDIT_PLUGIN_ENABLED" envDefault:"false"`
	ExampleNotifyResourceType string `env:"EXAMPLE_NOTIFY_RESOURCE_TYPE" envDefault:"Patient"`
	ExampleNotifyRecipient    string `env:"EXAMPLE_NOTIFY_RECIPIENT"`

	ExampleBearerAuthIntrospectionURL string `env:"EXAMPLE_BEARER_AUTH_INTROSPECTION_URL"`
	ExampleBearerAuthTokenURL         string `env:"EXAMPLE_BEARER_AUTH_TOKEN_URL"`
	ExampleBearerAuthClientID         string `env:"EXAMPLE_BEARER_AUTH_CLIENT_ID"`
	ExampleBearerAuthClientSecret     string `env:"EXAMPLE_BEARER_AUTH_CLIENT_SECRET"`
}

// gracePeriod bounds how long Shutdown waits for the async plugin pool to
// drain, per spec section 4.3/5: "Shutdown drains the async pool with a
// bounded timeout."
const gracePeriod = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fhirgateway: fatal startup error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var cfg AppConfig
	if err := appconfig.Load(&cfg); err != nil {
		return fmt.Errorf("load app config: %w", err)
	}

	log := logger.New(logger.WithEnvironment(cfg.Env, "fhirgateway"))
	logger.SetAsDefault(log)

	defaultVersion := fhirversion.Version(cfg.DefaultVersion)
	if !defaultVersion.Valid() {
		return fmt.Errorf("invalid DEFAULT_FHIR_VERSION %q", cfg.DefaultVersion)
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("load resource registry: %w", err)
	}

	var pgCfg pg.Config
	if err := appconfig.Load(&pgCfg); err != nil {
		return fmt.Errorf("load postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	shared, err := storage.NewPostgresBackend(pool, cfg.SharedSchema)
	if err != nil {
		return fmt.Errorf("build shared storage backend: %w", err)
	}

	// mongoDB is connected lazily, at most once, the first time a resource
	// type's dedicated_backend asks for it (spec section 4.5: Mongo is a
	// drop-in alternative to the default Postgres dedicated schema).
	var mongoDB *mongodriver.Database

	dedicated := make(map[string]storage.Backend)
	searchIndexOpts := []resource.Option{}
	for _, rt := range reg.Current().ResourceTypes() {
		rc, err := reg.Current().Get(rt)
		if err != nil || rc.Placement != registry.PlacementDedicated {
			continue
		}

		var backend storage.Backend
		switch rc.Backend() {
		case registry.DedicatedBackendMongo:
			if mongoDB == nil {
				var mongoCfg fhirmongo.Config
				if err := appconfig.Load(&mongoCfg); err != nil {
					return fmt.Errorf("load mongo config: %w", err)
				}
				mongoDB, err = fhirmongo.NewWithDatabase(ctx, mongoCfg, cfg.MongoDatabase)
				if err != nil {
					return fmt.Errorf("connect to mongo: %w", err)
				}
			}
			backend, err = storage.NewMongoBackend(mongoDB, rc.DedicatedSchema)
		default:
			backend, err = storage.NewPostgresBackend(pool, rc.DedicatedSchema)
		}
		if err != nil {
			return fmt.Errorf("build dedicated backend for %s: %w", rt, err)
		}
		dedicated[rc.DedicatedSchema] = backend
	}
	router := storage.NewRouter(shared, dedicated)

	// Resource types configured with search_backend: opensearch get a
	// SEARCH accelerator (spec section 4.5); the OpenSearch client is
	// connected lazily, at most once, the same way Mongo is above.
	var osClient *opensearchgo.Client
	for _, rt := range reg.Current().ResourceTypes() {
		rc, err := reg.Current().Get(rt)
		if err != nil || rc.SearchBackend != "opensearch" {
			continue
		}
		if osClient == nil {
			var osCfg opensearch.Config
			if err := appconfig.Load(&osCfg); err != nil {
				return fmt.Errorf("load opensearch config: %w", err)
			}
			osClient, err = opensearch.New(ctx, osCfg)
			if err != nil {
				return fmt.Errorf("connect to opensearch: %w", err)
			}
		}
		searchIndexOpts = append(searchIndexOpts, resource.WithSearchIndex(rt, storage.NewOpenSearchIndex(osClient, rc.SchemaName(), log)))
	}

	tenantStore := storage.NewPostgresTenantStore(pool)
	if err := tenant.Seed(ctx, tenantStore); err != nil {
		return fmt.Errorf("seed default tenant: %w", err)
	}

	tenantCache, err := newTenantCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build tenant cache: %w", err)
	}
	resolver := tenant.NewResolver(tenantStore,
		tenant.WithCache(tenantCache),
		tenant.WithHeaderName(cfg.TenantHeaderName),
		tenant.WithMultiTenancy(cfg.MultiTenancyEnabled),
	)

	var blobStore blobstore.Store
	if cfg.BlobBucket != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		blobStore = blobstore.NewS3Store(awss3.NewFromConfig(awsCfg), cfg.BlobBucket)
	}

	engine := conformance.NewGenericEngine()
	profileMode := profile.ModeStrict
	if cfg.ProfileValidatorMode == string(profile.ModeLenient) {
		profileMode = profile.ModeLenient
	}
	var profileValidator profile.Validator = profile.NoopValidator{}
	if cfg.ProfileValidationCacheSize > 0 {
		profileValidator = profile.NewCachingValidator(profileValidator, cfg.ProfileValidationCacheSize)
	}
	profileChecker := profile.NewChecker(profileValidator, profileMode, cfg.ProfileValidatorEnabled)
	searchValidator := searchparam.New(func(resourceType, param string) {
		log.Debug("searchparam: dropped unknown parameter", slog.String("resource_type", resourceType), slog.String("param", param))
	})

	resourceOpts := append([]resource.Option{resource.WithLogger(log)}, searchIndexOpts...)
	if blobStore != nil {
		resourceOpts = append(resourceOpts, resource.WithBlobStore(blobStore))
	}
	resources := resource.NewService(router, reg, engine, profileChecker, searchValidator, resourceOpts...)

	pluginRegistry := plugin.NewRegistry()
	orchestrator := plugin.NewOrchestrator(pluginRegistry,
		plugin.WithPoolSize(cfg.AsyncPoolSize),
		plugin.WithLogger(log),
	)
	registerExamplePlugins(pluginRegistry, cfg, log)

	fhirAPI := api.New(resources, orchestrator, reg, defaultVersion, log)
	adminAPI := &api.AdminAPI{Store: tenantStore, Resolver: resolver, Logger: log}

	mux := api.Router(fhirAPI, adminAPI, resolver, environment.Environment(cfg.Env), log)

	server := httpserver.New(
		httpserver.WithAddr(cfg.Addr),
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func(l *slog.Logger) {
			if !orchestrator.Shutdown(gracePeriod) {
				l.Warn("fhirgateway: async plugin pool did not drain within grace period")
			}
		}),
	)

	log.Info("fhirgateway: listening", slog.String("addr", cfg.Addr), slog.String("env", cfg.Env))
	if err := server.Run(ctx, mux); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// newTenantCache builds the tenant resolver's cache per TENANT_CACHE_BACKEND
// (SPEC_FULL.md section 4.2): "memory" (default) stays in one process;
// "redis" shares the mapping across every gateway instance.
func newTenantCache(ctx context.Context, cfg AppConfig) (tenant.Cache, error) {
	if cfg.TenantCacheBackend != "redis" {
		return tenant.NewInMemoryCache(), nil
	}

	var redisCfg fhirredis.Config
	if err := appconfig.Load(&redisCfg); err != nil {
		return nil, fmt.Errorf("load redis config: %w", err)
	}
	client, err := fhirredis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return tenant.NewRedisCache(client, ""), nil
}

// registerExamplePlugins wires the illustrative plugin implementations
// under examples/plugins into the orchestrator when an operator opts in,
// per SPEC_FULL.md section 4.3/10: these are swappable demonstrations of
// the plugin SPI, never a built-in policy.
func registerExamplePlugins(reg *plugin.Registry, cfg AppConfig, log *slog.Logger) {
	if cfg.ExampleAuditPluginEnabled {
		reg.RegisterSync(plugins.NewAuditPlugin(nil, 0))
	}

	if cfg.ExampleNotifyRecipient != "" {
		var emailCfg email.Config
		var sender email.EmailSender
		if err := appconfig.Load(&emailCfg); err == nil && emailCfg.PostmarkServerToken != "" {
			sender = email.MustNewPostmarkClient(emailCfg)
		} else {
			sender = email.NewDevSender(os.TempDir())
		}
		reg.RegisterAsync(&plugins.NotificationPlugin{
			Sender:         sender,
			Recipient:      cfg.ExampleNotifyRecipient,
			ResourceType:   cfg.ExampleNotifyResourceType,
			PluginPriority: 100,
			Logger:         log,
		})
	}

	if cfg.ExampleBearerAuthIntrospectionURL != "" {
		reg.RegisterSync(plugins.NewBearerAuthPlugin(
			cfg.ExampleBearerAuthIntrospectionURL,
			cfg.ExampleBearerAuthClientID,
			cfg.ExampleBearerAuthClientSecret,
			cfg.ExampleBearerAuthTokenURL,
			0,
		))
	}
}
