package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestFormatTags(t *testing.T) {
	t.Parallel()

	got := formatTags(map[string]string{
		"result":     "success",
		"transition": "completed",
		"":           "dropped",
	})
	want := "|#result:success,transition:completed"

	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTagsEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTags(nil); got != "" {
		t.Fatalf("formatTags(nil) = %q, want empty string", got)
	}
	if got := formatTags(map[string]string{" ": "x"}); got != "" {
		t.Fatalf("formatTags(blank keys) = %q, want empty string", got)
	}
}

func TestMetricName(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "wrapped_worker"}
	tests := map[string]string{
		" job.transition ": "wrapped_worker.job.transition",
		".reaper.deleted.": "wrapped_worker.reaper.deleted",
		"with space":       "wrapped_worker.with_space",
		"  ":               "",
	}
	for input, want := range tests {
		if got := c.metricName(input); got != want {
			t.Fatalf("metricName(%q) = %q, want %q", input, got, want)
		}
	}

	unprefixed := &Client{}
	if got := unprefixed.metricName("job.transition"); got != "job.transition" {
		t.Fatalf("metricName without prefix = %q, want %q", got, "job.transition")
	}
}

func TestClientEmitsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	c, err := NewClient(Config{
		Enabled: true,
		Address: pc.LocalAddr().String(),
		Prefix:  "wrapped_worker",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	c.Count("job.transition", 1, map[string]string{"result": "success"})
	c.Gauge("inflight", 3, nil)
	c.Timing("job.duration", 1500*time.Millisecond, nil)

	want := []string{
		"wrapped_worker.job.transition:1|c|#result:success",
		"wrapped_worker.inflight:3|g",
		"wrapped_worker.job.duration:1500|ms",
	}
	for _, expected := range want {
		if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("set deadline: %v", err)
		}
		buf := make([]byte, 512)
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got := string(buf[:n]); got != expected {
			t.Fatalf("packet = %q, want %q", got, expected)
		}
	}
}

func TestClientDisabled(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// Must be inert, not panic.
	c.Count("job.transition", 1, nil)
	c.Gauge("inflight", 1, nil)
	c.Timing("job.duration", time.Second, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestClientEnabledRequiresAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: true, Address: "  "})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.enabled {
		t.Fatal("client must be disabled without an address")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	c.Count("x", 1, nil)
	c.Gauge("x", 1, nil)
	c.Timing("x", time.Second, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestUseAfterClose(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	c, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c.Count("after.close", 1, nil)

	if err := pc.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	buf := make([]byte, 64)
	if n, _, err := pc.ReadFrom(buf); err == nil {
		if strings.Contains(string(buf[:n]), "after.close") {
			t.Fatal("closed client must not emit")
		}
	}
}
