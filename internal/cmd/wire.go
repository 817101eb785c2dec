package cmd

import (
	"context"
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/shadowlens/shadowlens/internal/config"
	"github.com/shadowlens/shadowlens/internal/core/checker"
	"github.com/shadowlens/shadowlens/internal/core/engine"
	"github.com/shadowlens/shadowlens/internal/core/gate"
	"github.com/shadowlens/shadowlens/internal/core/store"
	"github.com/shadowlens/shadowlens/internal/notify"
)

// stack is the fully wired application: storage, credential pool, upstream
// client, orchestrator, and the abuse gates.
type stack struct {
	Store        *store.Store
	Notifier     *notify.Notifier
	Tracker      *engine.RateLimitTracker
	Pool         *engine.CredentialPool
	Client       *checker.Client
	Prober       *checker.Prober
	Orchestrator *engine.Orchestrator
	Gateway      *gate.AccessGateway
	Pow          *gate.ProofOfWorkGate
	Monitor      *gate.LoadMonitor
}

// buildStack opens the store, runs migrations, and wires every component.
// The caller owns the returned store and must Close it.
func buildStack(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stack, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier := &notify.Notifier{
		URL:     cfg.Notify.WebhookURL,
		Logger:  logger,
		Timeout: cfg.Notify.Timeout,
	}

	tracker := engine.NewRateLimitTracker()
	pool := &engine.CredentialPool{
		Store:          st,
		Notifier:       notifier,
		Logger:         logger,
		SlotWidth:      cfg.Pool.SlotWidth,
		OperationalBan: cfg.Pool.OperationalBan,
	}

	httpClient := &http.Client{Timeout: cfg.Platform.RequestTimeout}
	client := &checker.Client{
		HTTP:          httpClient,
		Pool:          pool,
		Tracker:       tracker,
		Notifier:      notifier,
		Logger:        logger,
		BaseURL:       cfg.Platform.BaseURL,
		StatusBaseURL: cfg.Platform.StatusBaseURL,
		Timeout:       cfg.Platform.RequestTimeout,
	}
	prober := &checker.Prober{
		HTTP:    httpClient,
		Logger:  logger,
		Batch:   cfg.Platform.AvailabilityBatch,
		Timeout: cfg.Platform.RequestTimeout,
	}

	orchestrator := &engine.Orchestrator{
		Platform:       client,
		Prober:         prober,
		History:        st,
		Logger:         logger,
		Retries:        cfg.Platform.Retries,
		TimelineTarget: cfg.Platform.TimelineTarget,
	}

	gateway := &gate.AccessGateway{
		Store:    st,
		Notifier: notifier,
		Logger:   logger,
		DelayMin: cfg.Gate.DenialDelayMin,
		DelayMax: cfg.Gate.DenialDelayMax,
	}
	monitor := &gate.LoadMonitor{
		Window:    cfg.Gate.LoadWindow,
		Threshold: cfg.Gate.LoadThreshold,
		Lockdown:  gateway.Lockdown,
		Notifier:  notifier,
		Logger:    logger,
	}
	pow := &gate.ProofOfWorkGate{
		Monitor:        monitor,
		BaseDifficulty: cfg.Gate.PowBaseDifficulty,
		HighDifficulty: cfg.Gate.PowHighDifficulty,
		Expiry:         cfg.Gate.PowExpiry,
	}

	return &stack{
		Store:        st,
		Notifier:     notifier,
		Tracker:      tracker,
		Pool:         pool,
		Client:       client,
		Prober:       prober,
		Orchestrator: orchestrator,
		Gateway:      gateway,
		Pow:          pow,
		Monitor:      monitor,
	}, nil
}
