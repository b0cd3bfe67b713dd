package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wavecastsh/wavecast/internal/config"
	"github.com/wavecastsh/wavecast/internal/credential"
)

func newPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Print the current pairing code for the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPair(dataDir)
		},
	}
}

func runPair(dataDir string) error {
	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	creds, err := credential.Load(dataDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	req, err := http.NewRequest(http.MethodGet, base+"/api/auth/pair", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.CurrentAccessToken())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is wavecast running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var info struct {
		Code      string    `json:"code"`
		LocalURL  string    `json:"localUrl"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	fmt.Println("pairing code:", info.Code)
	fmt.Println("local URL:   ", info.LocalURL)
	fmt.Println("expires at:  ", info.ExpiresAt.Format(time.Kitchen))
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	fmt.Println()
	fmt.Println("enter this code in the companion app to pair a new device")
	return nil
}
