package cli

import (
	"github.com/nagi-app/nagi/internal/server"
	"github.com/nagi-app/nagi/internal/timeday"
	"github.com/nagi-app/nagi/internal/timeline"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer db.Close()

	tl := timeline.NewService(store, timeday.NewResolver(cfg.Time.UTCOffsetMinutes), cfg.Display.DotUnits)
	srv := server.New(store, tl, cfg, nil)
	return srv.ListenAndServe()
}
