package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getstubd/stubd/pkg/config"
	"github.com/getstubd/stubd/pkg/engine"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	configPath string
	port       int
	adminPort  int
	logLevel   string
	logFormat  string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulator (foreground)",
	Long: `Start the simulator in the foreground until SIGTERM/SIGINT.

The standalone server registers a built-in "echo" scenario so the
simulator answers out of the box. Real simulations embed the engine as a
library and register their own scenarios:

    srv, _ := engine.New(cfg)
    srv.RegisterScenarios(
        scenario.NewReactive("createOrder", orderScenario),
    )
    srv.Start()`,
	Example: `  # Start with defaults (echo scenario on :4680)
  stubd serve

  # Start from a config file
  stubd serve --config stubd.yaml

  # JSON logs for CI parsing
  stubd serve --log-format json`,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals
	serveCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to config file (YAML or JSON)")
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "Ingress port (overrides config)")
	serveCmd.Flags().IntVar(&f.adminPort, "admin-port", 0, "Admin API port (overrides config)")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	f := &serveFlagVals

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.port != 0 {
		cfg.HTTP.Port = f.port
	}
	if f.adminPort != 0 {
		cfg.HTTP.AdminPort = f.adminPort
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
	})

	srv, err := engine.New(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	if err := srv.RegisterScenarios(builtinScenarios(cfg)...); err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "stubd listening on :%d (admin :%d)\n",
		cfg.HTTP.Port, cfg.HTTP.AdminPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	srv.Stop()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// builtinScenarios returns the out-of-the-box scenario set: an echo
// scenario registered under both "echo" and the configured default name.
func builtinScenarios(cfg *config.Config) []*scenario.Definition {
	echo := scenario.Func(func(r *scenario.Runner) error {
		in, err := r.Receive(5 * time.Second)
		if err != nil {
			return err
		}
		return r.Send(message.NewOutbound(in.Payload))
	})

	defs := []*scenario.Definition{scenario.NewReactive("echo", echo)}
	if cfg.DefaultScenario != "" && cfg.DefaultScenario != "echo" {
		defs = append(defs, scenario.NewReactive(cfg.DefaultScenario, echo))
	}
	return defs
}
