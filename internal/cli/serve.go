package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tnidigan/userspace-resource-manager/internal/daemon"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/applier"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Admin API host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Admin API port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rtuned daemon",
	Long:  `Start the Concurrency Coordinator, its ingress socket, and its admin API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Admin.Host = serveHost
	}
	if servePort > 0 {
		cfg.Admin.Port = servePort
	}

	resources, signals := bootstrapRegistries()

	d, err := daemon.NewWithConfig(cfg, resources, signals, applier.New(), nil)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(context.Background())
}
