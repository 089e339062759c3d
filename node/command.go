package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plotfarm/go-farmer/cmd"
	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/config/presets"
	"github.com/plotfarm/go-farmer/log"
)

// GetCommand is the base command of the farmer.
func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "farmer",
		Short: "start farmer",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			app := New(WithConfig(&conf))
			if err := app.Initialize(); err != nil {
				return err
			}
			return run(c, app, app.Start)
		},
	}

	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)
	c.AddCommand(versionCommand())

	var (
		output    string
		overwrite bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			if err := config.NewTemplate(conf.Preset, &conf).WriteFile(output, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "config written to %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "path of the written config")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	c.AddCommand(initCmd)

	return c
}

// GetHarvesterCommand is the base command of the standalone harvester.
func GetHarvesterCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "harvester",
		Short: "serve plots to remote farmers",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			app := New(WithConfig(&conf))
			if err := app.InitializeHarvester(); err != nil {
				return err
			}
			return run(c, app, app.StartHarvester)
		},
	}
	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)
	c.AddCommand(versionCommand())
	return c
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprint(c.OutOrStdout(), cmd.Version)
			fmt.Fprintln(c.OutOrStdout())
		},
	}
}

// run locks the data directory and blocks in start until an interrupt.
func run(c *cobra.Command, app *App, start func(context.Context) error) error {
	// os.Interrupt for all systems, especially windows, syscall.SIGTERM is mainly for docker.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Lock(); err != nil {
		return fmt.Errorf("getting exclusive file lock: %w", err)
	}
	defer app.Unlock()

	// Don't print usage on error from this point forward
	c.SilenceUsage = true

	go rescanOnHangup(ctx, app)

	// This blocks until the context is finished or until an error is produced
	err := start(ctx)
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cleanupCancel()
	done := make(chan struct{}, 1)
	go func() {
		app.Cleanup(cleanupCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-cleanupCtx.Done():
		app.log.Error("app failed to clean up in time")
	}
	return err
}

func rescanOnHangup(ctx context.Context, app *App) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			app.Rescan()
		}
	}
}

func configure(c *cobra.Command, configPath string, conf *config.Config) error {
	preset := conf.Preset // might be set via CLI flag
	if err := loadConfig(conf, preset, configPath); err != nil {
		return log.ErrMalformedConfig(err)
	}
	// apply CLI args to config
	if err := c.ParseFlags(os.Args[1:]); err != nil {
		return log.ErrBadFlags(err)
	}
	return nil
}

// loadConfig loads config and preset (if provided) into the provided config.
// It first loads the preset and then overrides it with values from the config file.
func loadConfig(cfg *config.Config, preset, path string) error {
	v := viper.New()
	// read in config from file
	if err := config.LoadConfig(path, v); err != nil {
		return err
	}

	// override default config with preset if provided
	if len(preset) == 0 && v.IsSet("preset") {
		preset = v.GetString("preset")
	}
	base := config.DefaultConfig()
	if len(preset) > 0 {
		p, err := presets.Get(preset)
		if err != nil {
			return err
		}
		base = p
	}
	// values bound to flags are applied again after loading
	*cfg = base
	cfg.Preset = preset

	return config.Unmarshal(v, cfg)
}
