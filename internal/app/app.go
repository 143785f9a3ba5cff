package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/berniyo/paycollect/internal/collection"
	"github.com/berniyo/paycollect/internal/config"
	"github.com/berniyo/paycollect/internal/controllers"
	"github.com/berniyo/paycollect/internal/logging"
	"github.com/berniyo/paycollect/internal/notify"
	"github.com/berniyo/paycollect/internal/render"
	"github.com/berniyo/paycollect/internal/sessions"
	"github.com/berniyo/paycollect/internal/tink"
)

// App struct holds references to config, stores & services.
type App struct {
	Config     *config.Config
	Store      *sessions.MemoryStore
	Links      *collection.Links
	Renderer   *render.Renderer
	Engine     *collection.Engine
	Collection *controllers.CollectionController
}

// NewApp wires the open-banking client, session store, mailer and engine.
// engineOpts are applied after the defaults.
func NewApp(cfg *config.Config, engineOpts ...collection.Option) (*App, error) {
	logging.Logger.Info("Initializing paycollect App")

	api, err := tink.NewClient(cfg.TinkAPIBaseURL, cfg.TinkClientID, cfg.TinkClientSecret,
		tink.WithHTTPClient(&http.Client{Timeout: cfg.HTTPClientTimeout}),
		tink.WithPaymentScheme(cfg.PaymentScheme),
	)
	if err != nil {
		return nil, fmt.Errorf("configure tink client: %w", err)
	}

	sender, err := notify.NewSendGridSender(cfg.SendgridAPIKey)
	if err != nil {
		return nil, fmt.Errorf("configure sendgrid: %w", err)
	}

	renderer, err := render.New(cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	store := sessions.NewMemoryStore(sessions.WithTTL(cfg.SessionTTL))

	links := collection.NewLinks(collection.LinkConfig{
		BaseURL:         cfg.TinkLinkBaseURL,
		ClientID:        cfg.TinkClientID,
		Locale:          cfg.TinkLocale,
		InputProvider:   cfg.TinkInputProvider,
		DefaultMarket:   cfg.DefaultMarket,
		PublicBaseURL:   cfg.PublicBaseURL,
		FallbackBaseURL: "http://localhost:" + cfg.Port,
	})

	engineOpts = append([]collection.Option{collection.WithSender(cfg.MailFromName, cfg.MailFromEmail)}, engineOpts...)
	engine := collection.NewEngine(api, store, sender, renderer, links, engineOpts...)

	return &App{
		Config:     cfg,
		Store:      store,
		Links:      links,
		Renderer:   renderer,
		Engine:     engine,
		Collection: controllers.NewCollectionController(engine, renderer, links, cfg.DefaultCurrency),
	}, nil
}

// Router returns the HTTP surface of the app.
func (a *App) Router() http.Handler {
	return NewRouter(a.Collection, a.Config.CORSAllowedOrigins)
}

// RunSweeper evicts expired sessions until ctx is done.
func (a *App) RunSweeper(ctx context.Context) {
	a.Store.RunSweeper(ctx, a.Config.SessionSweepInterval, func(removed int) {
		logging.Logger.WithField("removed", removed).Debug("expired sessions swept")
	})
}

// Close waits for background email deliveries to finish.
func (a *App) Close() {
	a.Engine.Wait()
	logging.Logger.Info("paycollect app shutting down.")
}
