package ledgerauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/breach"
	"github.com/pennyledger/ledgerauth/internal/limiters"
	"github.com/pennyledger/ledgerauth/internal/otp"
	"github.com/pennyledger/ledgerauth/internal/tokencache"
	"github.com/pennyledger/ledgerauth/jwt"
	"github.com/pennyledger/ledgerauth/password"
)

// Builder assembles a [Service]. Construction is allocation-only; no I/O
// happens until the first Service method call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	email     EmailSink
	auditSink AuditSink
	breach    BreachChecker

	built bool
}

func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithEmailSink(sink EmailSink) *Builder {
	b.email = sink
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithBreachChecker overrides the default HIBP client; useful for tests and
// for air-gapped deployments that mirror the corpus.
func (b *Builder) WithBreachChecker(checker BreachChecker) *Builder {
	b.breach = checker
	return b
}

// Build validates the configuration, wires all internal components, and
// returns a ready Service. The Builder cannot be reused.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		config: cfg,
		users:  b.users,
		hasher: hasher,
		jwt:    jwtManager,
		email:  b.email,
	}
	if s.email == nil {
		s.email = NoOpEmailSink{}
	}

	s.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	s.tokens = tokencache.New(b.redis, tokencache.Config{
		RefreshTTL:  cfg.Tokens.RefreshTTL,
		ResetTTL:    cfg.Tokens.ResetTTL,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}, s.cacheWarn)

	s.limiter = limiters.NewLoginLimiter(b.redis, limiters.Config{
		MaxAttempts: cfg.Lockout.MaxAttempts,
		Window:      cfg.Lockout.Window,
		Duration:    cfg.Lockout.Duration,
	})

	s.totp = otp.NewManager(otp.Config{
		Issuer:       cfg.TOTP.Issuer,
		Digits:       cfg.TOTP.Digits,
		Period:       cfg.TOTP.Period,
		Skew:         cfg.TOTP.Skew,
		SecretLength: cfg.TOTP.SecretLength,
		Algorithm:    cfg.TOTP.Algorithm,
	})

	if b.breach != nil {
		s.breach = b.breach
	} else if cfg.Breach.Enabled {
		s.breach = breach.NewClient(cfg.Breach.BaseURL, cfg.Breach.Timeout)
	}

	b.built = true

	return s, nil
}
