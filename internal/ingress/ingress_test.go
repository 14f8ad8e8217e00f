package ingress

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/cc"
	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/applier"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/registry"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/signalregistry"
)

func newTestListener(t *testing.T) (*Listener, *cc.Coordinator, string) {
	t.Helper()
	rID := domain.NewResourceID(1, 1)
	descs := []domain.ResourceDescriptor{
		{ID: rID, PathTemplate: "/mock/r", Low: 0, High: 1000, Default: 100, Scope: domain.ScopeGlobal, Policy: domain.PolicyHigherIsBetter},
	}
	reg := registry.Load(descs, registry.Topology{}, nil)
	sigReg := signalregistry.Load(nil)
	mock := applier.NewMock()
	alive := func(int) bool { return true }

	coord := cc.New(cc.DefaultConfig(), reg, sigReg, mock, nil, alive)
	sock := filepath.Join(t.TempDir(), "rtuned.sock")
	l := New(sock, 2, coord)
	return l, coord, sock
}

func dialAndRoundtrip(t *testing.T, sock string, op Op, req interface{}) response {
	t.Helper()
	conn, err := net.DialTimeout("unix", sock, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	header := make([]byte, 5)
	header[0] = byte(op)
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)))
	if _, err := conn.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := conn.Write(body); err != nil {
		t.Fatalf("write body: %v", err)
	}

	r := bufio.NewReader(conn)
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		t.Fatalf("read len: %v", err)
	}
	n := binary.BigEndian.Uint32(lenBuf)
	respBody := make([]byte, n)
	if _, err := io.ReadFull(r, respBody); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp
}

func TestTuneResourcesRoundtrip(t *testing.T) {
	l, _, sock := newTestListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Serve(ctx)
	waitForSocket(t, sock)

	rID := domain.NewResourceID(1, 1)
	resp := dialAndRoundtrip(t, sock, OpTuneResources, tuneResourcesRequest{
		PID: 1, TID: 1, Priority: domain.PriorityThirdPartyHigh,
		Targets:    []domain.ResourceTarget{{ResourceID: rID, ScopeQualifier: 0, Value: 500}},
		DurationMS: 1000,
	})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.Handle == 0 {
		t.Error("expected a non-zero handle")
	}
}

func TestGetPropRoundtrip(t *testing.T) {
	l, _, sock := newTestListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Serve(ctx)
	waitForSocket(t, sock)

	resp := dialAndRoundtrip(t, sock, OpGetProp, getPropRequest{Name: "maximum.resources.per.request"})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.Value != 32 {
		t.Errorf("Value = %d, want 32", resp.Value)
	}
}

func TestUntuneUnknownHandle(t *testing.T) {
	l, _, sock := newTestListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Serve(ctx)
	waitForSocket(t, sock)

	resp := dialAndRoundtrip(t, sock, OpUntune, untuneRequest{Handle: 99999})
	if resp.Error != domain.CodeNoSuchHandle {
		t.Errorf("Error = %v, want %v", resp.Error, domain.CodeNoSuchHandle)
	}
}

func waitForSocket(t *testing.T, sock string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sock); err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", sock)
}
