package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/meepleboard/meeple/auth"
	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/config"
	"github.com/meepleboard/meeple/db"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/meepleboard/meeple/pkg/metrics"
	"github.com/meepleboard/meeple/pkg/sealer"
	"github.com/rs/zerolog/log"
)

// app holds what a command needs once setup has run.
type app struct {
	configPath string

	cfg     *config.Config
	metrics *metrics.Metrics
	tokens  *auth.Service
	client  *client.Client
	account *client.AccountService

	closers    []func() error
	hadSession bool
	expired    atomic.Bool
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configFile())
	if err != nil {
		return clierr.New(clierr.Validation, err.Error(), err)
	}
	a.cfg = cfg
	a.metrics = metrics.New()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	baseURL := cfg.APIURL()
	log.Debug().Str("env", cfg.Env).Str("api", baseURL).Str("store", cfg.Store.Backend).Msg("Configuration loaded")

	refresher := client.NewRefreshEndpoint(baseURL, &http.Client{Timeout: cfg.API.Timeout})
	a.tokens = auth.NewService(store, refresher,
		auth.WithExpiryLeeway(cfg.Token.ExpiryLeeway),
		auth.WithMetrics(a.metrics),
	)
	a.client = client.New(baseURL, a.tokens,
		client.WithTimeout(cfg.API.Timeout),
		client.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		client.WithMetrics(a.metrics),
		client.WithUserAgent("meeple/"+version),
		client.WithSessionExpiredHandler(func() { a.expired.Store(true) }),
	)
	a.account = client.NewAccountService(a.client, a.tokens)

	if st, err := a.tokens.Status(ctx); err == nil {
		a.hadSession = st.LoggedIn
	}
	return nil
}

// openStore builds the sealed credential store the config selects.
func (a *app) openStore(ctx context.Context) (auth.CredentialStore, error) {
	secret := []byte(a.cfg.Store.Passphrase)
	if len(secret) == 0 {
		key, err := sealer.LoadOrCreateKey(a.cfg.Store.KeyFile)
		if err != nil {
			return nil, clierr.New(clierr.Internal, "Cannot load the credential store key.", err)
		}
		secret = key
	}
	codec, err := sealer.New(secret)
	if err != nil {
		return nil, clierr.New(clierr.Internal, "Cannot initialize credential encryption.", err)
	}

	switch a.cfg.Store.Backend {
	case config.BackendRedis:
		rc := db.NewRedisClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		store := db.NewRedisStore(rc, a.cfg.Redis.Prefix, codec)
		if err := store.HealthCheck(ctx); err != nil {
			_ = store.Close()
			return nil, clierr.New(clierr.Network, fmt.Sprintf("Cannot reach Redis at %s.", a.cfg.Redis.Addr), err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		db.Path = a.cfg.Store.Path
		if err := db.InitDB(); err != nil {
			return nil, clierr.New(clierr.Internal, "Cannot open the credential database.", err)
		}
		a.closers = append(a.closers, db.CloseDB)
		return db.NewSecretStore(db.GetDB(), codec), nil
	}
}

// close releases the store and writes the metrics textfile, if configured.
func (a *app) close() error {
	var errs []error
	if a.cfg != nil {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sessionExpired reports whether a session that existed at startup was ended
// by a failed refresh.
func (a *app) sessionExpired() bool { return a.hadSession && a.expired.Load() }

// currentUserID is the id of the signed-in user, from the stored access token.
func (a *app) currentUserID(ctx context.Context) (string, error) {
	id, err := a.tokens.UserID(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			return "", err
		}
		return "", clierr.New(clierr.Auth, "Stored session is unreadable. Run `meeple login` again.", err)
	}
	return id, nil
}
