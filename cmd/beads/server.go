package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/api"
	"github.com/agentflow/beads/internal/lifecycle"
	"github.com/agentflow/beads/internal/project"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	GroupID: "lifecycle",
	Short:   "Manage the multi-project server-mode dashboard daemon",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		status, err := lifecycle.Status(paths)
		if err != nil {
			return err
		}
		if status.Running {
			printResult(status, func(v interface{}) {
				fmt.Printf("%s server already running (pid %d) on port %d\n", passStyle.Render("✓"), status.PID, status.Port)
			})
			return nil
		}

		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving own executable: %w", err)
		}
		logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304
		if err != nil {
			return fmt.Errorf("opening server log: %w", err)
		}
		defer func() { _ = logFile.Close() }()

		proc := exec.Command(self, "server", "run")
		proc.Stdout = logFile
		proc.Stderr = logFile
		if err := proc.Start(); err != nil {
			return fmt.Errorf("starting server: %w", err)
		}

		printResult(map[string]int{"pid": proc.Process.Pid}, func(v interface{}) {
			fmt.Printf("%s server starting (pid %d)\n", passStyle.Render("✓"), proc.Process.Pid)
		})
		return nil
	},
}

var serverRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the server daemon in the foreground (used internally by 'server start')",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		if err := lifecycle.StartDaemon(paths); err != nil {
			return err
		}

		cfg, err := lifecycle.LoadServerConfig(paths)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		for dir, reg := range cfg.Projects {
			saved := dbPathOverride
			dbPathOverride = dir
			a, err := openApp(context.Background())
			dbPathOverride = saved
			if err != nil {
				continue
			}
			prefix := "/" + strings.Trim(reg.Prefix, "/")
			handler := api.NewHTTPServer(a.surface).Handler()
			mux.Handle(prefix+"/", http.StripPrefix(prefix, handler))
		}

		httpServer := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", cfg.Port), Handler: mux}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()

		select {
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		if err := lifecycle.StopDaemon(paths); err != nil {
			return err
		}
		printResult(map[string]bool{"stopped": true}, func(v interface{}) {
			fmt.Println(passStyle.Render("✓") + " server stopped")
		})
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the server daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		status, err := lifecycle.Status(paths)
		if err != nil {
			return err
		}
		printResult(status, func(v interface{}) {
			s := v.(*lifecycle.ServerStatus)
			if s.Running {
				fmt.Printf("%s running (pid %d) on port %d\n", passStyle.Render("✓"), s.PID, s.Port)
			} else {
				fmt.Println(mutedStyle.Render("not running"))
			}
		})
		return nil
	},
}

var serverRegisterCmd = &cobra.Command{
	Use:   "register <prefix>",
	Short: "Register the current project with the server daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := project.Find()
		if dir == "" {
			return fmt.Errorf("no %s directory found in this tree", project.DirName)
		}
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		if err := lifecycle.RegisterProject(paths, dir, args[0]); err != nil {
			return err
		}
		printResult(map[string]string{"dir": dir, "prefix": args[0]}, func(v interface{}) {
			fmt.Printf("%s registered %s as %s\n", passStyle.Render("✓"), dir, args[0])
		})
		return nil
	},
}

var serverUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Unregister the current project from the server daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := project.Find()
		if dir == "" {
			return fmt.Errorf("no %s directory found in this tree", project.DirName)
		}
		paths, err := lifecycle.NewServerPaths()
		if err != nil {
			return err
		}
		if err := lifecycle.UnregisterProject(paths, dir); err != nil {
			return err
		}
		printResult(map[string]string{"dir": dir}, func(v interface{}) {
			fmt.Printf("%s unregistered %s\n", passStyle.Render("✓"), dir)
		})
		return nil
	},
}

func init() {
	serverCmd.AddCommand(serverStartCmd, serverRunCmd, serverStopCmd, serverStatusCmd, serverRegisterCmd, serverUnregisterCmd)
}
