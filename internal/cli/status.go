package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tnidigan/userspace-resource-manager/internal/cc"
)

func init() {
	statusCmd.Flags().StringVar(&statusHost, "host", "127.0.0.1", "Admin API host")
	statusCmd.Flags().IntVar(&statusPort, "port", 9977, "Admin API port")
	rootCmd.AddCommand(statusCmd)
}

var (
	statusHost string
	statusPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report live coordinator load",
	Long:  `Query a running rtuned daemon's admin API for its current load.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("http://%s:%d/status", statusHost, statusPort)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("rtuned not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rtuned returned %s", resp.Status)
	}

	var s cc.Stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return err
	}

	fmt.Printf("live handles:      %d\n", s.LiveHandles)
	fmt.Printf("queue depth:       %d\n", s.QueueDepth)
	fmt.Printf("timer wheel depth: %d\n", s.TimerWheelDepth)
	fmt.Printf("live clients:      %d\n", s.LiveClients)
	return nil
}
