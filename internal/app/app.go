// Package app assembles the onboarding services from configuration. Both the
// HTTP server and the Lambda entry point build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"membership/internal/handler"
	"membership/internal/identity/directory/cognito"
	identitymemory "membership/internal/identity/directory/memory"
	identity "membership/internal/identity/service"
	member "membership/internal/member/service"
	"membership/internal/member/store/dynamo"
	membermemory "membership/internal/member/store/memory"
	memberpg "membership/internal/member/store/postgres"
	memberredis "membership/internal/member/store/redis"
	relaymemory "membership/internal/notify/relay/memory"
	"membership/internal/notify/relay/ses"
	notify "membership/internal/notify/service"
	"membership/internal/pipeline"
	"membership/internal/platform/awsclient"
	"membership/internal/platform/config"
	"membership/internal/platform/metrics"
	"membership/internal/platform/postgres"
	redisclient "membership/internal/platform/redis"
	"membership/pkg/platform/events"
	"membership/pkg/platform/events/kafka"
)

// Component names one backend-dependent service.
type Component string

const (
	ComponentIdentity Component = "identity"
	ComponentStore    Component = "store"
	ComponentNotify   Component = "notify"
)

// AllComponents is what the standalone server needs.
var AllComponents = []Component{ComponentIdentity, ComponentStore, ComponentNotify}

// App holds the assembled services. Services for components that were not
// requested are nil; the handler answers their steps with a generic 500.
type App struct {
	Handler  *handler.Handler
	Pipeline *pipeline.Pipeline
	Identity *identity.Service
	Members  *member.Service
	Notifier *notify.Service
	Metrics  *metrics.Metrics

	closers []func(context.Context) error
}

// Build connects the configured backends for the requested components.
// On error every resource opened so far is released.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer, components ...Component) (a *App, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a = &App{Metrics: metrics.New(reg)}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsclient.Load(ctx)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	for _, c := range components {
		switch c {
		case ComponentIdentity:
			err = a.buildIdentity(cfg.Identity, logger, loadAWS)
		case ComponentStore:
			err = a.buildMembers(ctx, cfg, logger, loadAWS)
		case ComponentNotify:
			err = a.buildNotifier(cfg.Email, logger, loadAWS)
		default:
			err = fmt.Errorf("unknown component %q", c)
		}
		if err != nil {
			return nil, err
		}
	}

	// Typed nil pointers must not reach the handler's interfaces.
	var (
		idp   handler.IdentityProvisioner
		store handler.MemberStore
		notif handler.Notifier
	)
	if a.Identity != nil {
		idp = a.Identity
	}
	if a.Members != nil {
		store = a.Members
	}
	if a.Notifier != nil {
		notif = a.Notifier
	}
	a.Handler = handler.New(idp, store, notif, handler.WithLogger(logger), handler.WithMetrics(a.Metrics))
	a.Pipeline = pipeline.New(a.Handler, logger)
	return a, nil
}

func (a *App) buildIdentity(cfg config.IdentityConfig, logger *slog.Logger, loadAWS func() (aws.Config, error)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var dir identity.Directory
	switch cfg.Backend {
	case config.BackendCognito:
		awsCfg, err := loadAWS()
		if err != nil {
			return err
		}
		dir = cognito.NewFromConfig(awsCfg, cfg.UserPoolID)
	default:
		dir = identitymemory.New()
	}
	svc, err := identity.New(dir, identity.WithLogger(logger), identity.WithMetrics(a.Metrics))
	if err != nil {
		return fmt.Errorf("identity service: %w", err)
	}
	a.Identity = svc
	return nil
}

func (a *App) buildMembers(ctx context.Context, cfg config.Config, logger *slog.Logger, loadAWS func() (aws.Config, error)) error {
	if err := cfg.Store.Validate(); err != nil {
		return err
	}

	var table member.Table
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		awsCfg, err := loadAWS()
		if err != nil {
			return err
		}
		table = dynamo.NewFromConfig(awsCfg, cfg.Store.TableName, cfg.Store.IndexName)
	case config.BackendRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		table = memberredis.New(client)
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := memberpg.Migrate(ctx, pool); err != nil {
			return err
		}
		table = memberpg.New(pool)
	default:
		table = membermemory.New()
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(logger))
		if err != nil {
			return err
		}
		a.onClose(p.Close)
		if err := p.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return err
		}
		publisher = p
	}

	svc, err := member.New(table,
		member.WithLogger(logger),
		member.WithMetrics(a.Metrics),
		member.WithPublisher(publisher),
		member.WithMaxAttempts(cfg.Store.MaxAttempts),
	)
	if err != nil {
		return fmt.Errorf("member service: %w", err)
	}
	a.Members = svc
	return nil
}

func (a *App) buildNotifier(cfg config.EmailConfig, logger *slog.Logger, loadAWS func() (aws.Config, error)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var relay notify.Relay
	switch cfg.Backend {
	case config.BackendSES:
		awsCfg, err := loadAWS()
		if err != nil {
			return err
		}
		relay = ses.NewFromConfig(awsCfg)
	default:
		relay = relaymemory.New()
	}
	bank := notify.BankDetails{
		AccountName:   cfg.BankAccountName,
		SortCode:      cfg.BankSortCode,
		AccountNumber: cfg.BankAccountNumber,
	}
	svc, err := notify.New(relay, cfg.From, bank, notify.WithLogger(logger), notify.WithMetrics(a.Metrics))
	if err != nil {
		return fmt.Errorf("notify service: %w", err)
	}
	a.Notifier = svc
	return nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases backend connections in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
