package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wavecastsh/wavecast/internal/authsession"
	"github.com/wavecastsh/wavecast/internal/config"
	"github.com/wavecastsh/wavecast/internal/credential"
	"github.com/wavecastsh/wavecast/internal/device"
	"github.com/wavecastsh/wavecast/internal/frontdoor"
	"github.com/wavecastsh/wavecast/internal/identity"
	"github.com/wavecastsh/wavecast/internal/pairing"
	"github.com/wavecastsh/wavecast/internal/relayclient"
	"github.com/wavecastsh/wavecast/internal/store"
)

const pidFileName = "wavecast.pid"

// maxPortBindAttempts bounds the port-bind retry loop: if the configured
// port and the next nine above it are all taken, startup fails rather than
// retrying forever, per spec §8.
const maxPortBindAttempts = 10

// listenWithRetry binds bindAddress:port, trying port, port+1, ... up to
// attempts successive ports before giving up. Returns the bound listener
// and the port it actually bound to.
func listenWithRetry(bindAddress string, port, attempts int) (net.Listener, int, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		candidate := port + i
		addr := net.JoinHostPort(bindAddress, strconv.Itoa(candidate))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, candidate, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port found in %d-%d: %w", port, port+attempts-1, lastErr)
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Bring the server up: local HTTP/WS front door and outbound relay connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), dataDir)
		},
	}
}

func runStart(ctx context.Context, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Save(); err != nil {
		logger.Warn("failed to persist config", "error", err)
	}

	id, err := identity.Load(dataDir)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	creds, err := credential.Load(dataDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	st, err := store.NewSQLiteStore(filepath.Join(dataDir, "devices.db"))
	if err != nil {
		return fmt.Errorf("opening device store: %w", err)
	}
	defer st.Close()

	sessions := authsession.New(cfg.Auth.SessionTTL(), cfg.Auth.SweepInterval())
	devices := device.New(st, sessions)

	listener, boundPort, err := listenWithRetry(cfg.Server.BindAddress, cfg.Server.Port, maxPortBindAttempts)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}

	pub := id.GetPublicIdentity()
	localURL := fmt.Sprintf("http://%s:%d", displayHost(cfg.Server.BindAddress), boundPort)
	pairCoord := pairing.New(devices, func() string { return pub.RoomID }, localURL)

	door := frontdoor.New(frontdoor.Deps{
		Identity:        id,
		Credentials:     creds,
		Devices:         devices,
		Pairing:         pairCoord,
		Sessions:        sessions,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		Logger:          logger,
	})

	relay := relayclient.New(relayclient.Config{
		RelayURL:   cfg.Relay.URL,
		RoomID:     pub.RoomID,
		ServerName: pub.Name,
		LocalURL:   localURL,
		KeyPair:    id.KeyPair(),
		Injector:   door,
		Tokens:     door,
		Logger:     logger,
	})

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := writePIDFile(dataDir); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}
	defer os.Remove(filepath.Join(dataDir, pidFileName))

	httpServer := &http.Server{Handler: door}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("front door listening", "addr", listener.Addr().String(), "local_url", localURL)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve: %w", err)
			return
		}
		errCh <- nil
	}()

	go sessions.Run(ctx)

	go func() {
		if err := relay.Run(ctx); err != nil {
			logger.Error("relay client stopped", "error", err)
		}
	}()

	printStartupBanner(localURL, pub, pairCoord)

	select {
	case err := <-errCh:
		cancel()
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during graceful shutdown", "error", err)
	}

	return nil
}

func displayHost(bindAddress string) string {
	if bindAddress == "0.0.0.0" || bindAddress == "" {
		return "localhost"
	}
	return bindAddress
}

func printStartupBanner(localURL string, pub identity.PublicIdentity, coord *pairing.Coordinator) {
	code := coord.CurrentCode()
	fmt.Println("wavecast is running")
	fmt.Println("  local URL:   ", localURL)
	fmt.Println("  server name: ", pub.Name)
	fmt.Println("  server id:   ", pub.ServerID)
	fmt.Println("  pairing code:", code.Code)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println("  (scan the QR code from the admin UI to pair a device)")
	}
}

func writePIDFile(dataDir string) error {
	path := filepath.Join(dataDir, pidFileName)
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
