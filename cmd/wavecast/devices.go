package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wavecastsh/wavecast/internal/config"
	"github.com/wavecastsh/wavecast/internal/credential"
)

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List paired devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListDevices(dataDir)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <device-id>",
		Short: "Revoke a paired device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevokeDevice(dataDir, args[0])
		},
	})
	return cmd
}

func localAdminRequest(dataDir, method, path string) (*http.Response, error) {
	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	creds, err := credential.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.CurrentAccessToken())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is wavecast running? %w", err)
	}
	return resp, nil
}

func runListDevices(dataDir string) error {
	resp, err := localAdminRequest(dataDir, http.MethodGet, "/api/auth/devices")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var devices []struct {
		DeviceID   string `json:"deviceId"`
		Name       string `json:"name"`
		Status     string `json:"status"`
		LastSeenAt string `json:"lastSeenAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("no paired devices")
		return nil
	}
	for _, dev := range devices {
		fmt.Printf("%-36s  %-20s  %-10s  last seen %s\n", dev.DeviceID, dev.Name, dev.Status, dev.LastSeenAt)
	}
	return nil
}

func runRevokeDevice(dataDir, deviceID string) error {
	resp, err := localAdminRequest(dataDir, http.MethodDelete, "/api/auth/devices/"+deviceID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	fmt.Println("revoked", deviceID)
	return nil
}
