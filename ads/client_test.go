package ads

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"strings"
	"testing"
	"time"
)

type fakeSymbol struct {
	adsType uint32
	value   []byte
}

// fakePLC answers device info, symbol info, handle, and read-by-handle
// requests on a loopback listener.
type fakePLC struct {
	symbols map[string]fakeSymbol
	handles map[uint32]string
	nextHdl uint32
}

func startFakePLC(t *testing.T, symbols map[string]fakeSymbol) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	plc := &fakePLC{
		symbols: symbols,
		handles: make(map[uint32]string),
	}

	go func() {
		for {
			sock, err := ln.Accept()
			if err != nil {
				return
			}
			go plc.serve(sock)
		}
	}()

	return ln.Addr().String()
}

func (p *fakePLC) serve(sock net.Conn) {
	defer sock.Close()
	for {
		hdr := make([]byte, 6)
		if _, err := io.ReadFull(sock, hdr); err != nil {
			return
		}
		frame := make([]byte, binary.LittleEndian.Uint32(hdr[2:6]))
		if _, err := io.ReadFull(sock, frame); err != nil {
			return
		}

		cmd := binary.LittleEndian.Uint16(frame[16:18])
		invokeID := binary.LittleEndian.Uint32(frame[28:32])
		resp := p.respond(cmd, frame[32:])

		out := make([]byte, 6+32+len(resp))
		binary.LittleEndian.PutUint32(out[2:6], uint32(32+len(resp)))
		copy(out[6:12], frame[8:14]) // swap source and target
		copy(out[12:14], frame[14:16])
		copy(out[14:20], frame[0:6])
		copy(out[20:22], frame[6:8])
		binary.LittleEndian.PutUint16(out[22:24], cmd)
		binary.LittleEndian.PutUint16(out[24:26], 0x0005)
		binary.LittleEndian.PutUint32(out[26:30], uint32(len(resp)))
		binary.LittleEndian.PutUint32(out[34:38], invokeID)
		copy(out[38:], resp)

		if _, err := sock.Write(out); err != nil {
			return
		}
	}
}

func (p *fakePLC) respond(cmd uint16, payload []byte) []byte {
	switch cmd {
	case cmdReadDeviceInfo:
		resp := make([]byte, 24)
		resp[4] = 3
		resp[5] = 1
		binary.LittleEndian.PutUint16(resp[6:8], 4024)
		copy(resp[8:24], "TestPLC")
		return resp

	case cmdReadWrite:
		group := binary.LittleEndian.Uint32(payload[0:4])
		writeLen := binary.LittleEndian.Uint32(payload[12:16])
		name := strings.TrimRight(string(payload[16:16+writeLen]), "\x00")

		sym, ok := p.symbols[name]
		if !ok {
			return append(le32(ErrSymbolNotFound), le32(0)...)
		}

		switch group {
		case idxSymbolInfoByNameEx:
			entry := make([]byte, 30)
			binary.LittleEndian.PutUint32(entry[0:4], 30)
			binary.LittleEndian.PutUint32(entry[12:16], uint32(len(sym.value)))
			binary.LittleEndian.PutUint32(entry[16:20], sym.adsType)
			resp := make([]byte, 8, 8+len(entry))
			binary.LittleEndian.PutUint32(resp[4:8], uint32(len(entry)))
			return append(resp, entry...)

		case idxHandleByName:
			p.nextHdl++
			p.handles[p.nextHdl] = name
			resp := make([]byte, 12)
			binary.LittleEndian.PutUint32(resp[4:8], 4)
			binary.LittleEndian.PutUint32(resp[8:12], p.nextHdl)
			return resp
		}
		return le32(ErrDeviceSrvNotSupported)

	case cmdRead:
		handle := binary.LittleEndian.Uint32(payload[4:8])
		name, ok := p.handles[handle]
		if !ok {
			return append(le32(ErrDeviceNotFound), le32(0)...)
		}
		value := p.symbols[name].value
		resp := make([]byte, 8, 8+len(value))
		binary.LittleEndian.PutUint32(resp[4:8], uint32(len(value)))
		return append(resp, value...)

	case cmdWrite: // handle release
		return le32(0)
	}
	return le32(ErrDeviceSrvNotSupported)
}

func testSymbols() map[string]fakeSymbol {
	return map[string]fakeSymbol{
		"GVL.Temp":    {adsType: 5, value: le64(math.Float64bits(21.5))}, // LREAL
		"GVL.Count":   {adsType: 3, value: le32(42)},                     // DINT
		"GVL.Running": {adsType: 33, value: []byte{1}},                   // BOOL
		"GVL.State":   {adsType: 30, value: []byte("idle\x00\x00")},      // STRING
	}
}

func connectTest(t *testing.T) *Client {
	t.Helper()
	addr := startFakePLC(t, testSymbols())
	client := NewClient(Config{Address: addr, NetID: "10.0.0.1.1.1", Timeout: 2 * time.Second})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestClientConnect(t *testing.T) {
	client := connectTest(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if dev := client.Device(); !strings.Contains(dev, "TestPLC") {
		t.Errorf("Device() = %q, want TestPLC name", dev)
	}
}

func TestClientConnectRefused(t *testing.T) {
	client := NewClient(Config{Address: "127.0.0.1:1", Timeout: 500 * time.Millisecond})
	if err := client.Connect(); err == nil {
		t.Fatal("Connect() to closed port should fail")
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}
}

func TestReadSymbol(t *testing.T) {
	client := connectTest(t)

	tests := []struct {
		name     string
		symbol   string
		expected interface{}
	}{
		{"lreal", "GVL.Temp", float64(21.5)},
		{"dint", "GVL.Count", int64(42)},
		{"bool", "GVL.Running", true},
		{"string", "GVL.State", "idle"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := client.ReadSymbol(tc.symbol)
			if err != nil {
				t.Fatalf("ReadSymbol(%q) error: %v", tc.symbol, err)
			}
			if got != tc.expected {
				t.Errorf("ReadSymbol(%q) = %v (%T), want %v (%T)", tc.symbol, got, got, tc.expected, tc.expected)
			}
		})
	}

	// Second read goes through the cached handle.
	if _, err := client.ReadSymbol("GVL.Count"); err != nil {
		t.Errorf("cached ReadSymbol error: %v", err)
	}
}

func TestReadSymbolNotFound(t *testing.T) {
	client := connectTest(t)

	_, err := client.ReadSymbol("GVL.Missing")
	if err == nil {
		t.Fatal("ReadSymbol of unknown symbol should fail")
	}
	var adsErr *Error
	if !errors.As(err, &adsErr) || adsErr.Code != ErrSymbolNotFound {
		t.Errorf("error = %v, want symbol not found", err)
	}
	// Protocol-level errors must not kill the session.
	if !client.IsConnected() {
		t.Error("IsConnected() = false after ads-level error")
	}
}

func TestReadAfterClose(t *testing.T) {
	client := connectTest(t)
	client.Close()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if _, err := client.ReadSymbol("GVL.Count"); err == nil {
		t.Error("ReadSymbol after Close should fail")
	}
}
