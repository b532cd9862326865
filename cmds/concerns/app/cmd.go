package app

import (
	"context"
	"fmt"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/engine"
	"github.com/mandelsoft/concerns/pkg/impl/database/filesystem"
	"github.com/mandelsoft/concerns/pkg/landscape"
	"github.com/mandelsoft/concerns/pkg/metrics"
	"github.com/mandelsoft/concerns/pkg/utils"
)

var REALM = logging.DefineRealm("concerns/cli", "concerns command line")

type Options struct {
	landscape string
	database  string
	level     string
	users     []string

	fs   vfs.FileSystem
	lctx logging.Context
}

func New(fss ...vfs.FileSystem) *cobra.Command {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)
	cfg := GetConfig(fs)

	opts := &Options{
		fs:        fs,
		lctx:      logging.DefaultContext(),
		landscape: value(cfg.Landscape),
		database:  value(cfg.Database),
		level:     value(cfg.LogLevel),
		users:     cfg.Users,
	}
	if opts.level == "" {
		opts.level = "info"
	}

	maincmd := &cobra.Command{
		Use:   "concerns <options> <cmd> <args>",
		Short: "maintain the concerns of an object landscape",
		Long: `
This command evaluates the concerns (issues, flags and locks) of
the objects of a landscape. Landscapes are described by YAML
documents declaring bundles, providers with hosts, and clusters with
services, components, host-component mappings and imports.
`,
		SilenceUsage:     true,
		SilenceErrors:    true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.configureLogging()
		},
	}

	opts.AddFlags(maincmd.PersistentFlags())

	maincmd.AddCommand(NewShow(opts))
	maincmd.AddCommand(NewServe(opts, *cfg.Port))
	return maincmd
}

func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.landscape, "landscape", "l", o.landscape, "landscape file")
	flags.StringVarP(&o.database, "database", "d", o.database, "concern database path")
	flags.StringVarP(&o.level, "log-level", "L", o.level, "log level")
}

func (o *Options) configureLogging() error {
	l, err := logging.ParseLevel(o.level)
	if err != nil {
		return fmt.Errorf("invalid log level %q", o.level)
	}
	o.lctx.AddRule(logging.NewConditionRule(l, logging.NewRealmPrefix("concerns")))
	return nil
}

func (o *Options) Logger() logging.Logger {
	return o.lctx.Logger(REALM)
}

// Setup creates an engine for the configured landscape. If a database
// is configured, the persisted concerns are restored.
func (o *Options) Setup(ctx context.Context, m *metrics.Metrics, required bool) (*engine.Engine, *landscape.Index, error) {
	var db database.Database
	if o.database != "" {
		var err error
		db, err = filesystem.NewSpecification(o.database, o.fs).Create()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open database %q: %w", o.database, err)
		}
	}

	e := engine.New(engine.Settings{
		Logging:    o.lctx,
		Database:   db,
		Authorizer: engine.Users(o.users...),
		Metrics:    m,
	})

	var idx *landscape.Index
	if o.landscape == "" {
		if required {
			return nil, nil, fmt.Errorf("landscape required")
		}
	} else {
		l, err := landscape.Load(o.landscape, o.fs)
		if err != nil {
			return nil, nil, err
		}
		idx, err = l.Apply(ctx, e, o.lctx)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot apply landscape %q: %w", o.landscape, err)
		}
		o.Logger().Info("landscape {{landscape}} applied", "landscape", o.landscape, "objects", len(e.ListObjectIds("")))
	}

	err := e.Restore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot restore concerns: %w", err)
	}
	return e, idx, nil
}
