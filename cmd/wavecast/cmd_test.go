package main

import (
	"net"
	"strconv"
	"testing"
)

func TestDefaultDataDirFallsBackWhenEnvUnset(t *testing.T) {
	t.Setenv("WAVECAST_DATA_DIR", "")
	dir := defaultDataDir()
	if dir == "" {
		t.Fatal("expected a non-empty default data dir")
	}
}

func TestDefaultDataDirRespectsEnv(t *testing.T) {
	t.Setenv("WAVECAST_DATA_DIR", "/tmp/wavecast-test-data")
	if got := defaultDataDir(); got != "/tmp/wavecast-test-data" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestDisplayHostRewritesWildcardBind(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0":    "localhost",
		"":           "localhost",
		"127.0.0.1":  "127.0.0.1",
		"192.168.1.5": "192.168.1.5",
	}
	for in, want := range cases {
		if got := displayHost(in); got != want {
			t.Errorf("displayHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListenWithRetrySkipsOccupiedPort(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer blocker.Close()
	occupiedPort := blocker.Addr().(*net.TCPAddr).Port

	ln, bound, err := listenWithRetry("127.0.0.1", occupiedPort, 5)
	if err != nil {
		t.Fatalf("listenWithRetry: %v", err)
	}
	defer ln.Close()

	if bound == occupiedPort {
		t.Fatalf("expected listenWithRetry to skip the occupied port %d", occupiedPort)
	}
	if bound <= occupiedPort || bound > occupiedPort+4 {
		t.Fatalf("expected bound port within the retry window, got %d (base %d)", bound, occupiedPort)
	}
}

func TestListenWithRetryExhaustsAttempts(t *testing.T) {
	var blockers []net.Listener
	defer func() {
		for _, b := range blockers {
			b.Close()
		}
	}()

	first, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	blockers = append(blockers, first)
	base := first.Addr().(*net.TCPAddr).Port

	for i := 1; i < 3; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(base+i)))
		if err != nil {
			t.Skipf("could not reserve port %d for test setup: %v", base+i, err)
		}
		blockers = append(blockers, ln)
	}

	if _, _, err := listenWithRetry("127.0.0.1", base, 3); err == nil {
		t.Fatal("expected listenWithRetry to fail once all candidate ports are occupied")
	}
}

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"start": false, "pair": false, "devices": false, "stop": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}
