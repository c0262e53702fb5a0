package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/and161185/clipsync/internal/config"
)

// skipLoad marks commands that run before a config file exists.
const skipLoad = "clipsync/skip-load"

// cli is the state shared by all subcommands of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer
	cfg     config.Config
	app     *app
	ui      *ui
}

// execute runs one invocation and releases whatever it opened.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	c := &cli{v: config.New(), out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	defer c.close()
	return root.ExecuteContext(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clipsync",
		Short:         "Local-first clipboard history with replica sync",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.ui = newUI(c.out)
			if cmd.Annotations[skipLoad] != "" {
				return nil
			}
			cfg, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.String("data-dir", "", "data directory")
	pf.String("storage", "", "storage backend: sqlite, dir or memory")
	pf.String("log-level", "", "log level")
	pf.String("remote", "", "replica address host:port")
	_ = c.v.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = c.v.BindPFlag("storage.backend", pf.Lookup("storage"))
	_ = c.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = c.v.BindPFlag("remote.addr", pf.Lookup("remote"))

	root.AddCommand(
		c.addCmd(),
		c.listCmd(),
		c.showCmd(),
		c.pinCmd(true),
		c.pinCmd(false),
		c.renameCmd(),
		c.tagCmd(),
		c.trashCmd(),
		c.recoverCmd(),
		c.purgeCmd(),
		c.emptyTrashCmd(),
		c.retentionCmd(),
		c.tagColorCmd(),
		c.syncCmd(),
		c.daemonCmd(),
		c.doctorCmd(),
		c.configCmd(),
	)
	return root
}

// open builds the app lazily; commands that never touch the store skip it.
func (c *cli) open(cmd *cobra.Command) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := openApp(cmd.Context(), c.cfg)
	if err != nil {
		return nil, err
	}
	if a.loadErr != nil {
		fmt.Fprintf(c.errOut, "warning: local history failed to load and was backed up: %v\n", a.loadErr)
		fmt.Fprintln(c.errOut, "changes are refused until `clipsync doctor --ack` is run")
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.close()
		c.app = nil
	}
}
