package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/application/usecases"
	"github.com/example/arca-scheduler/internal/infrastructure/arca"
	"github.com/example/arca-scheduler/internal/infrastructure/config"
	"github.com/example/arca-scheduler/internal/infrastructure/crypto"
	"github.com/example/arca-scheduler/internal/infrastructure/gormstore"
	"github.com/example/arca-scheduler/internal/infrastructure/logging"
	"github.com/example/arca-scheduler/internal/infrastructure/mq"
	"github.com/example/arca-scheduler/internal/infrastructure/postgres"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	store     usecases.Store
	cipher    *crypto.Cipher
	connector arca.Connector
	publisher *mq.Publisher
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.New(cfg.CredKey)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		cipher: cipher,
		connector: arca.Connector{
			BaseURL: cfg.ArcaBaseURL,
			Timeout: cfg.ArcaTimeout,
			Logger:  log.Named("arca"),
		},
	}
	if cfg.AMQPURL != "" {
		p, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// events are optional; bookings go ahead without them
			log.Warn("attempt events disabled", zap.Error(err))
		} else {
			a.publisher = p
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (usecases.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return gormstore.New(cfg.SQLitePath)
	default:
		d, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := d.Ping(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if err := postgres.Migrate(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
		return postgres.NewStore(d), nil
	}
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	_ = a.store.Close()
	_ = a.log.Sync()
}

// attemptPublisher keeps a nil *mq.Publisher from becoming a non-nil
// interface.
func (a *app) attemptPublisher() usecases.AttemptPublisher {
	if a.publisher == nil {
		return nil
	}
	return a.publisher
}

func (a *app) credentials() usecases.CredentialsService {
	return usecases.CredentialsService{Store: a.store, Cipher: a.cipher, Connector: a.connector}
}

func (a *app) rules() usecases.RulesService {
	return usecases.RulesService{Store: a.store}
}

func (a *app) history() usecases.HistoryService {
	return usecases.HistoryService{Store: a.store}
}

func (a *app) browse() usecases.Browse {
	return usecases.Browse{Credentials: a.credentials(), Connector: a.connector, Zone: a.cfg.Zone, Log: a.log}
}

func (a *app) bookClass() usecases.BookClass {
	return usecases.BookClass{
		Credentials: a.credentials(),
		Connector:   a.connector,
		History:     a.store,
		Publisher:   a.attemptPublisher(),
		Log:         a.log,
		BookTimeout: a.cfg.BookTimeout,
	}
}

func (a *app) checkBookings() *usecases.CheckBookings {
	return &usecases.CheckBookings{
		Users:            a.store,
		Credentials:      a.credentials(),
		Rules:            a.store,
		History:          a.store,
		Connector:        a.connector,
		Publisher:        a.attemptPublisher(),
		Log:              a.log.Named("check"),
		Zone:             a.cfg.Zone,
		MaxDaysAhead:     a.cfg.MaxDaysAhead,
		UserConcurrency:  a.cfg.UserConcurrency,
		FetchConcurrency: a.cfg.FetchConcurrency,
		BookTimeout:      a.cfg.BookTimeout,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
