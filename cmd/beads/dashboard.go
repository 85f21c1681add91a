package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/api"
	"github.com/agentflow/beads/internal/lifecycle"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "lifecycle",
	Short:   "Start (or attach to) the local dashboard for this project",
	Long: `In ethereal mode (the default), spawns a detached dashboard process bound
to a port derived from this project's resolved directory and exits once the
child is still running after a short startup delay. --serve is the flag the spawned child itself
is invoked with; running it directly starts the server in the foreground.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serve, _ := cmd.Flags().GetBool("serve"); serve {
			return runDashboardForeground(cmd)
		}

		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		a.Close()

		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving own executable: %w", err)
		}

		result, err := lifecycle.StartEthereal(rootCtx, a.beadsDir, lifecycle.ExecSpawn(self))
		if err != nil {
			return err
		}
		printResult(result, func(v interface{}) {
			r := v.(*lifecycle.EtherealResult)
			if r.AlreadyRunning {
				fmt.Printf("%s dashboard already running at %s\n", passStyle.Render("✓"), r.URL)
			} else {
				fmt.Printf("%s dashboard started at %s (pid %d)\n", passStyle.Render("✓"), r.URL, r.PID)
			}
		})
		return nil
	},
}

func init() {
	dashboardCmd.Flags().Bool("serve", false, "run the dashboard server in the foreground (used internally by the spawned child)")
	dashboardCmd.Flags().String("project-dir", "", "project .beads directory (set by the parent when spawning --serve)")
	dashboardCmd.Flags().Int("port", 0, "port to bind (set by the parent when spawning --serve)")
}

func runDashboardForeground(cmd *cobra.Command) error {
	projectDir, _ := cmd.Flags().GetString("project-dir")
	if projectDir != "" {
		dbPathOverride = projectDir
	}
	port, _ := cmd.Flags().GetInt("port")

	a, err := openApp(rootCtx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = lifecycle.DeterministicPort(a.beadsDir)
	}

	server := api.NewHTTPServer(a.surface)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ctx, fmt.Sprintf("127.0.0.1:%d", port)) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		<-errCh
		return nil
	}
}
