// Package app is the composition root. It builds every security component from
// config, owns their lifecycle and exposes the operations the outer HTTP layer
// calls. No security state lives in package-level variables.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"trustcore/internal/audit"
	auditdomain "trustcore/internal/audit/domain"
	auditrepo "trustcore/internal/audit/repository"
	"trustcore/internal/config"
	"trustcore/internal/db"
	identityrepo "trustcore/internal/identity/repository"
	identityservice "trustcore/internal/identity/service"
	"trustcore/internal/mfa"
	mfarepo "trustcore/internal/mfa/repository"
	"trustcore/internal/scheduler"
	"trustcore/internal/security"
	sessionrepo "trustcore/internal/session/repository"
	sessionservice "trustcore/internal/session/service"
	"trustcore/internal/telemetry"
	"trustcore/internal/telemetry/metrics"
	"trustcore/internal/telemetry/notify"
	telemetryotel "trustcore/internal/telemetry/otel"
	"trustcore/internal/telemetry/producer"
	vaultdomain "trustcore/internal/vault/domain"
	vaultrepo "trustcore/internal/vault/repository"
	vaultservice "trustcore/internal/vault/service"
)

// Sweep task names registered by Start.
const (
	TaskSessionCleanup = "session-cleanup"
	TaskChallengeSweep = "mfa-challenge-sweep"
	TaskDetectorPrune  = "audit-window-prune"
	TaskRotationCheck  = "vault-rotation-check"
)

const (
	detectorPruneInterval = time.Minute
	rotationCheckInterval = time.Hour
)

// Option configures New.
type Option func(*options)

type options struct {
	nowF           func() time.Time
	loggerProvider *sdklog.LoggerProvider
	db             *sql.DB
}

// WithClock sets the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.nowF = now }
}

// WithLoggerProvider adds an OTel log sink for audit events and alerts.
func WithLoggerProvider(lp *sdklog.LoggerProvider) Option {
	return func(o *options) { o.loggerProvider = lp }
}

// WithDB uses an already open pool instead of opening DATABASE_URL. The caller
// keeps ownership of db.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// App holds the wired security subsystem.
type App struct {
	Tokens     *security.TokenProvider
	Data       *security.Engine
	Authority  *sessionservice.Authority
	Audit      *audit.Engine
	Vault      *vaultservice.Vault
	Auth       *identityservice.AuthService
	Challenges *mfa.Challenges
	Scheduler  *scheduler.Manager
	Metrics    *metrics.Metrics

	cfg     *config.Config
	db      *sql.DB
	ownDB   bool
	async   []*telemetry.AsyncSink
	closers []func() error
	log     zerolog.Logger
}

type stores struct {
	sessions    sessionrepo.Repository
	revocations sessionrepo.RevocationStore
	identities  identityrepo.Repository
	challenges  mfarepo.Repository
	secrets     vaultrepo.SecretStore
	vaultAudit  vaultrepo.AuditStore
	events      auditrepo.EventStore
	alerts      auditrepo.AlertStore
}

func memoryStores(now func() time.Time) stores {
	return stores{
		sessions:    sessionrepo.NewMemoryRepository(),
		revocations: sessionrepo.NewMemoryRevocationStore(),
		identities:  identityrepo.NewMemoryRepository(),
		challenges:  mfarepo.NewMemoryRepository().WithClock(now),
		secrets:     vaultrepo.NewMemorySecretStore(),
		vaultAudit:  vaultrepo.NewMemoryAuditStore(),
		events:      auditrepo.NewMemoryEventStore(),
		alerts:      auditrepo.NewMemoryAlertStore(),
	}
}

func postgresStores(d *sql.DB) stores {
	return stores{
		sessions:    sessionrepo.NewPostgresRepository(d),
		revocations: sessionrepo.NewPostgresRevocationStore(d),
		identities:  identityrepo.NewPostgresRepository(d),
		challenges:  mfarepo.NewPostgresRepository(d),
		secrets:     vaultrepo.NewPostgresSecretStore(d),
		vaultAudit:  vaultrepo.NewPostgresAuditStore(d),
		events:      auditrepo.NewPostgresEventStore(d),
		alerts:      auditrepo.NewPostgresAlertStore(d),
	}
}

// NewTokenProvider builds the token provider described by cfg: RS256/ES256 when
// a key pair is configured, HS256 with separate access and refresh secrets otherwise.
func NewTokenProvider(cfg *config.Config, opts ...security.TokenOption) (*security.TokenProvider, error) {
	tc := security.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}
	if cfg.HasKeyPair() {
		signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("load jwt key pair: %w", err)
		}
		tc.Signer, tc.PublicKey = signer, pub
	} else {
		tc.AccessSecret = []byte(cfg.JWTSecret)
		tc.RefreshSecret = []byte(cfg.RefreshTokenSecret)
	}
	return security.NewTokenProvider(tc, opts...)
}

// New builds the subsystem. With DATABASE_URL set every store is Postgres;
// otherwise all state is in memory and lost on exit.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{nowF: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, log: log.With().Str("component", "app").Logger()}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.db = o.db
	if a.db == nil && cfg.DatabaseURL != "" {
		if a.db, err = db.Open(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.ownDB = true
	}
	st := memoryStores(o.nowF)
	if a.db != nil {
		st = postgresStores(a.db)
	}

	if a.Data, err = security.NewEngineFromHex(cfg.DataEncryptionKey); err != nil {
		return nil, fmt.Errorf("data encryption key: %w", err)
	}
	vaultEngine, err := security.NewEngineFromHex(cfg.VaultEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("vault encryption key: %w", err)
	}
	if a.Tokens, err = NewTokenProvider(cfg, security.WithTimeFunc(o.nowF)); err != nil {
		return nil, err
	}

	a.Metrics = metrics.New()
	sinks, notifiers, err := a.telemetry(cfg, o.loggerProvider)
	if err != nil {
		return nil, err
	}
	a.Audit = audit.NewEngine(st.events, st.alerts,
		audit.WithClock(o.nowF),
		audit.WithSinks(sinks...),
		audit.WithNotifiers(notifiers...),
	)

	a.Scheduler = scheduler.NewManager(0)
	a.Vault = vaultservice.New(st.secrets, st.vaultAudit, vaultEngine,
		vaultservice.WithClock(o.nowF),
		vaultservice.WithDefaultTTL(cfg.SecretDefaultTTL()),
		vaultservice.WithScheduler(a.Scheduler),
		vaultservice.WithIntegrityHook(a.onIntegrityFailure),
	)
	a.Authority = sessionservice.NewAuthority(st.sessions, st.revocations, a.Tokens,
		sessionservice.WithClock(o.nowF),
		sessionservice.WithSessionTTL(cfg.SessionTTL()),
	)
	a.Challenges = mfa.NewChallenges(st.challenges, mfa.DefaultCodeWindow, o.nowF)
	a.Auth = identityservice.NewAuthService(st.identities, a.Authority, security.NewHasher(cfg.BcryptCost), a.Audit,
		identityservice.WithVault(a.Vault),
		identityservice.WithObserver(a.Metrics),
		identityservice.WithClock(o.nowF),
		identityservice.WithTracer(telemetryotel.Tracer("trustcore/identity")),
	)
	return a, nil
}

// telemetry assembles audit sinks and alert notifiers from cfg. Network sinks
// are wrapped in AsyncSink so LogEvent never waits on them.
func (a *App) telemetry(cfg *config.Config, lp *sdklog.LoggerProvider) ([]audit.Sink, []audit.Notifier, error) {
	sinks := []audit.Sink{a.Metrics}
	notifiers := []audit.Notifier{notify.NewLogNotifier(nil), a.Metrics}

	if cfg.AuditLogPath != "" {
		fs := audit.NewFileSink(audit.FileSinkConfig{
			Path:       cfg.AuditLogPath,
			MaxSizeMB:  cfg.AuditLogMaxSizeMB,
			MaxBackups: cfg.AuditLogMaxBackups,
			MaxAgeDays: cfg.AuditLogMaxAgeDays,
			Compress:   true,
		})
		sinks = append(sinks, fs)
		a.closers = append(a.closers, fs.Close)
	}
	if lp != nil {
		s := telemetry.Async("otel", telemetryotel.NewSink(lp))
		a.async = append(a.async, s)
		sinks = append(sinks, s)
		notifiers = append(notifiers, s)
	}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		p := producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		s := telemetry.Async("kafka", p)
		a.async = append(a.async, s)
		a.closers = append(a.closers, p.Close)
		sinks = append(sinks, s)
		notifiers = append(notifiers, s)
	}
	if cfg.NATSURL != "" {
		n, err := notify.DialNATS(cfg.NATSURL, cfg.AlertNATSSubject)
		if err != nil {
			return nil, nil, err
		}
		s := telemetry.Async("nats", n)
		a.async = append(a.async, s)
		a.closers = append(a.closers, n.Close)
		notifiers = append(notifiers, s)
	}
	return sinks, notifiers, nil
}

func (a *App) onIntegrityFailure(ctx context.Context, key, owner string, err error) {
	a.Audit.Record(ctx, auditdomain.EventEncryptionFailure, auditdomain.ExtraContext{
		Actor: auditdomain.Actor{Subject: owner},
		Extra: map[string]any{"vaultKey": key, "error": err.Error()},
	})
}

// DB returns the Postgres pool, or nil when running on memory stores.
func (a *App) DB() *sql.DB { return a.db }

// Authenticate verifies a request's access token.
func (a *App) Authenticate(ctx context.Context, rawToken string) (*security.Claims, error) {
	return a.Auth.Authenticate(ctx, rawToken)
}

// Login verifies credentials and opens a session.
func (a *App) Login(ctx context.Context, email string, creds identityservice.Credentials) (*identityservice.LoginResult, error) {
	return a.Auth.Login(ctx, email, creds)
}

// Logout revokes a session and both of its tokens.
func (a *App) Logout(ctx context.Context, sessionID string) error {
	return a.Auth.Logout(ctx, sessionID)
}

// Record logs an audit event without reporting failure to the caller.
func (a *App) Record(ctx context.Context, typ auditdomain.EventType, ectx auditdomain.EventContext) {
	a.Audit.Record(ctx, typ, ectx)
}

// VaultGet reads a configuration secret.
func (a *App) VaultGet(ctx context.Context, key, owner string) (string, error) {
	return a.Vault.GetSecret(ctx, key, owner)
}

// VaultSet stores a configuration secret.
func (a *App) VaultSet(ctx context.Context, key, value string, opts vaultservice.StoreOptions) error {
	return a.Vault.StoreSecret(ctx, key, value, opts)
}

// VaultRotate replaces a configuration secret.
func (a *App) VaultRotate(ctx context.Context, key, newValue, owner string) error {
	return a.Vault.RotateSecret(ctx, key, newValue, owner)
}

// Start registers the periodic sweeps on the scheduler.
func (a *App) Start(ctx context.Context) error {
	tasks := []struct {
		name     string
		interval time.Duration
		fn       scheduler.TaskFunc
	}{
		{TaskSessionCleanup, a.cfg.SessionCleanupInterval(), a.sweep("sessions", a.Authority.CleanupExpiredSessions)},
		{TaskChallengeSweep, a.cfg.SessionCleanupInterval(), a.sweep("mfa_challenges", a.Challenges.Sweep)},
		{TaskDetectorPrune, detectorPruneInterval, a.sweep("detector_windows", a.Audit.PruneWindows)},
		{TaskRotationCheck, rotationCheckInterval, a.checkRotation},
	}
	for _, t := range tasks {
		if err := a.Scheduler.Register(t.name, t.interval, t.fn); err != nil {
			return err
		}
	}
	a.log.Info().Int("tasks", len(tasks)).Msg("periodic sweeps started")
	return nil
}

func (a *App) sweep(name string, fn func(context.Context) (int, error)) scheduler.TaskFunc {
	return func(ctx context.Context) error {
		n, err := fn(ctx)
		a.Metrics.ObserveSweep(name, n)
		return err
	}
}

func (a *App) checkRotation(ctx context.Context) error {
	due, err := a.Vault.CheckRotationStatus(ctx)
	if err != nil {
		return err
	}
	for _, s := range due {
		a.log.Warn().Str("key", s.Key).Int("days_until_expiry", s.DaysUntilExpiry).Msg("secret requires rotation")
	}
	return nil
}

// RotationDue is CheckRotationStatus on the wired vault.
func (a *App) RotationDue(ctx context.Context) ([]vaultdomain.RotationStatus, error) {
	return a.Vault.CheckRotationStatus(ctx)
}

// Close stops sweeps and rotation schedules, drains async sinks within ctx and
// releases connections.
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs []error
	for _, s := range a.async {
		if err := s.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ownDB && a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
