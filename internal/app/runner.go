// Package app wires configuration into the worker pipeline shared by both
// binaries.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"mapscraper/internal/adapters/chrome"
	"mapscraper/internal/config"
	"mapscraper/internal/ports"
	"mapscraper/internal/services/extractor"
	"mapscraper/internal/workers/scrapeworker"
)

// RunnerFactory returns a constructor for named worker runners that share
// one store and one browser launcher.
func RunnerFactory(cfg config.Config, store ports.Store, logger arbor.ILogger) func(i int) *scrapeworker.Runner {
	launcher := chrome.NewLauncher(chrome.Options{
		Headless:       cfg.Browser.Headless,
		ExecPath:       cfg.Browser.ExecPath,
		UserAgent:      cfg.Browser.UserAgent,
		Locale:         cfg.Browser.Locale,
		StartupTimeout: cfg.Worker.NavTimeout,
	}, logger)
	ex := extractor.New(extractor.Options{
		SearchBaseURL: cfg.Worker.SearchBaseURL,
		MaxIterations: cfg.Worker.MaxIterations,
		NavTimeout:    cfg.Worker.NavTimeout,
		StepTimeout:   cfg.Worker.StepTimeout,
		InitialWait:   cfg.Worker.InitialWait,
		DetailWait:    cfg.Worker.DetailWait,
		ScrollWait:    cfg.Worker.ScrollWait,
	}, logger)
	opts := scrapeworker.Options{
		MaxResults:  cfg.Worker.MaxResults,
		IdleBackoff: cfg.Worker.IdleBackoff,
		SettleDelay: cfg.Worker.SettleDelay,
		MaxErrorLen: cfg.Worker.MaxErrorLen,
	}
	return func(i int) *scrapeworker.Runner {
		return scrapeworker.New(fmt.Sprintf("worker-%d", i), store, store, launcher, ex, opts, logger)
	}
}
