package properties

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/propctl/internal/config"
	"github.com/danmuck/propctl/internal/protocol"
	"github.com/danmuck/propctl/internal/testutil/testlog"
	"github.com/danmuck/propctl/internal/transport"
)

// fakeService is a patched-style property service on a unix socket:
// SETPROP stores and closes, GETPROP echoes one reply, LISTPROP
// streams the whole store.
type fakeService struct {
	path  string
	mu    sync.Mutex
	store map[string]string
}

func startFakeService(t *testing.T) *fakeService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prop.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	svc := &fakeService{path: path, store: map[string]string{}}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go svc.handle(conn)
		}
	}()
	return svc
}

func (s *fakeService) handle(c net.Conn) {
	defer c.Close()
	buf := make([]byte, protocol.MessageSize)
	if _, err := io.ReadFull(c, buf); err != nil {
		return
	}
	req, err := protocol.Decode(buf)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Cmd {
	case protocol.CmdSet:
		s.store[req.Name] = req.Value
	case protocol.CmdGet:
		reply := protocol.Message{Cmd: req.Cmd, Name: req.Name, Value: s.store[req.Name]}
		if wire, err := reply.Encode(); err == nil {
			c.Write(wire)
		}
	case protocol.CmdList:
		for k, v := range s.store {
			if wire, err := (protocol.Message{Cmd: req.Cmd, Name: k, Value: v}).Encode(); err == nil {
				c.Write(wire)
			}
		}
	}
}

// startLegacyService consumes one request per connection and closes
// without ever replying, like an unpatched init.
func startLegacyService(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, protocol.MessageSize)
			io.ReadFull(conn, buf)
			conn.Close()
		}
	}()
	return path
}

// testConfig points every source at the given socket and at absent
// static files unless a test swaps fixtures in.
func testConfig(t *testing.T, socket string) config.Config {
	t.Helper()
	return config.Config{
		SocketPath:     socket,
		BuildPropsPath: filepath.Join(t.TempDir(), "absent.prop"),
		CmdlinePath:    filepath.Join(t.TempDir(), "absent.cmdline"),
	}
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestSetGetRoundTrip(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	if err := c.Set("ro.test", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.Get("ro.test", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "42" {
		t.Fatalf("round trip got=%q want=42", v)
	}
}

func TestGetUnsetPropertyUsesDefault(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	// Service reachable, property unset: the default substitutes
	// inside the successful-transport path.
	v, err := c.Get("ro.missing", "fallback")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "fallback" {
		t.Fatalf("got=%q want=fallback", v)
	}
}

func TestGetUnsetPropertyNoDefaultIsEmpty(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	v, err := c.Get("ro.missing", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "" {
		t.Fatalf("got=%q want empty", v)
	}
}

func TestGetLegacyServerFallsBackToStaticSources(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t, startLegacyService(t))
	cfg.BuildPropsPath = writeFixture(t, "build.prop", "ro.foo=bar\n")
	c := NewClient(cfg)

	v, err := c.Get("ro.foo", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "bar" {
		t.Fatalf("got=%q want=bar (build.prop via legacy no-reply path)", v)
	}
}

func TestGetUnreachableFallsBackToBuildProps(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.sock"))
	cfg.BuildPropsPath = writeFixture(t, "build.prop", "ro.foo=bar\n")
	c := NewClient(cfg)

	v, err := c.Get("ro.foo", "miss")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "bar" {
		t.Fatalf("got=%q want=bar", v)
	}
}

func TestGetUnreachableFallsBackToCmdline(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.sock"))
	cfg.CmdlinePath = writeFixture(t, "cmdline", "androidboot.serialno=ABC123 console=ttyS0\n")
	c := NewClient(cfg)

	v, err := c.Get("ro.serialno", "miss")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "ABC123" {
		t.Fatalf("got=%q want=ABC123", v)
	}
}

func TestGetTotalMissReturnsDefault(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	v, err := c.Get("ro.nowhere", "dflt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "dflt" {
		t.Fatalf("got=%q want=dflt", v)
	}
}

func TestGetTotalMissNoDefaultIsEmpty(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	v, err := c.Get("ro.nowhere", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "" {
		t.Fatalf("got=%q want empty", v)
	}
}

func TestGetEmptyKeyReturnsDefaultWithoutIO(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	v, err := c.Get("", "dflt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "dflt" {
		t.Fatalf("got=%q want=dflt", v)
	}
}

func TestGetInvalidKey(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	_, err := c.Get(strings.Repeat("k", protocol.NameMax), "")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSetInvalidKey(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	err := c.Set(strings.Repeat("k", protocol.NameMax), "v")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSetInvalidValue(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	err := c.Set("ro.k", strings.Repeat("v", protocol.ValueMax))
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestSetEmptyValueIsLegal(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	if err := c.Set("ro.blank", ""); err != nil {
		t.Fatalf("empty value must be accepted: %v", err)
	}
}

func TestSetUnreachableHasNoFallback(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	err := c.Set("ro.k", "v")
	if !errors.Is(err, transport.ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
}

func TestListStreamsEveryEntry(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	if err := c.Set("ro.a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set("ro.b", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got := map[string]string{}
	if err := c.List(func(key, value string) { got[key] = value }); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got["ro.a"] != "1" || got["ro.b"] != "2" {
		t.Fatalf("listing got=%v", got)
	}
}

func TestListEmptyServiceSucceeds(t *testing.T) {
	testlog.Start(t)
	svc := startFakeService(t)
	c := NewClient(testConfig(t, svc.path))

	calls := 0
	if err := c.List(func(string, string) { calls++ }); err != nil {
		t.Fatalf("empty listing must succeed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("zero entries must mean zero callbacks, got %d", calls)
	}
}

func TestListUnreachableSurfacesConnectFailed(t *testing.T) {
	testlog.Start(t)
	c := NewClient(testConfig(t, filepath.Join(t.TempDir(), "absent.sock")))

	err := c.List(func(string, string) {})
	if !errors.Is(err, transport.ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
}
