package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mandelsoft/concerns/pkg/access"
	"github.com/mandelsoft/concerns/pkg/engine"
	"github.com/mandelsoft/concerns/pkg/metrics"
	"github.com/mandelsoft/concerns/pkg/pool"
	"github.com/mandelsoft/concerns/pkg/server"
	"github.com/mandelsoft/concerns/pkg/service"
)

type Serve struct {
	cmd *cobra.Command

	mainopts *Options
	port     int
	workers  int
	period   time.Duration
}

func NewServe(opts *Options, port int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <options>",
		Short: "serve the concerns of a landscape via HTTP",
		Long: `
The concerns are served under /concerns/. Flags can be removed
with DELETE requests by the configured users (header X-User).
Metrics are provided under /metrics and the health state under
/healthz. With a database the records are available under /db/.
`,
	}

	c := &Serve{
		cmd:      cmd,
		mainopts: opts,
		port:     port,
		workers:  2,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run() }
	c.AddFlags(cmd.Flags())
	return cmd
}

func (c *Serve) AddFlags(flags *pflag.FlagSet) {
	flags.IntVarP(&c.port, "port", "p", c.port, "server port")
	flags.IntVarP(&c.workers, "workers", "w", c.workers, "number of resync workers")
	flags.DurationVarP(&c.period, "resync", "r", c.period, "resync period")
	flags.StringSliceVarP(&c.mainopts.users, "user", "u", c.mainopts.users, "users authorized to remove flags")
}

func (c *Serve) Run() error {
	ctx, cancel := signal.NotifyContext(c.cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return c.serve(ctx)
}

func (c *Serve) serve(ctx context.Context) error {
	log := c.mainopts.Logger()
	lctx := c.mainopts.lctx

	m := metrics.New()
	e, _, err := c.mainopts.Setup(ctx, m, false)
	if err != nil {
		return err
	}

	srv := server.NewServer(lctx, c.port, true, 0)
	access.New(lctx, e, "/concerns").RegisterHandler(srv)
	srv.Handle("/metrics", m.Handler())
	if c.mainopts.database != "" {
		fs, err := projectionfs.New(c.mainopts.fs, c.mainopts.database)
		if err != nil {
			return err
		}
		server.NewDirectoryHandler(fs, "/db").RegisterHandler(srv)
	}

	p := pool.NewPool(lctx, "resync", c.workers, c.period)
	e.Register(ctx, p)

	services := service.New(ctx)
	for _, s := range []service.Service{p, srv} {
		if err := services.Add(s); err != nil {
			return err
		}
	}
	err = services.Start()
	if err != nil {
		return err
	}
	p.EnqueueCommand(engine.CmdResync)
	log.Info("serving concerns on port {{port}}", "port", c.port)
	return services.Wait()
}
