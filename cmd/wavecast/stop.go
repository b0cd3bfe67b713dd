package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running wavecast server via its pid file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(dataDir)
		},
	}
}

func runStop(dataDir string) error {
	path := filepath.Join(dataDir, pidFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no pid file at %s; is wavecast running?", path)
		}
		return fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("malformed pid file %s: %w", path, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			os.Remove(path)
			return fmt.Errorf("process %d is not running; removed stale pid file", pid)
		}
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	fmt.Printf("sent SIGTERM to pid %d, waiting for shutdown\n", pid)
	for i := 0; i < 50; i++ {
		if err := proc.Signal(syscall.Signal(0)); errors.Is(err, syscall.ESRCH) {
			fmt.Println("stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("process did not exit within 5s, it may still be shutting down")
	return nil
}
