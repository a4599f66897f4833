package ads

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Config holds the connection parameters for a Client.
type Config struct {
	Address string        // IP or host, optionally host:port (default port 48898)
	NetID   string        // target AMS Net ID; derived from Address when empty
	AmsPort uint16        // target AMS port; 851 when zero
	Timeout time.Duration // per-request deadline; 5s when zero
}

// Client reads symbols from a single TwinCAT PLC. Symbol info and handles
// are cached after first use. All operations are serialized on one TCP
// session, so the Client is safe for concurrent use.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      *conn
	connected bool
	device    string
	symbols   map[string]*symbolEntry
}

type symbolEntry struct {
	typeCode uint16
	size     uint32
	handle   uint32
}

// NewClient returns an unconnected client for the given target.
func NewClient(cfg Config) *Client {
	if cfg.AmsPort == 0 {
		cfg.AmsPort = DefaultAmsPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:     cfg,
		symbols: make(map[string]*symbolEntry),
	}
}

// Connect dials the PLC and verifies the session with a device info read.
// There is no internal retry; callers decide whether a failure is fatal.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	host, port, err := net.SplitHostPort(c.cfg.Address)
	if err != nil {
		host = c.cfg.Address
		port = fmt.Sprintf("%d", DefaultTCPPort)
	}

	var target NetID
	if c.cfg.NetID != "" {
		target, err = ParseNetID(c.cfg.NetID)
		if err != nil {
			return fmt.Errorf("connect %s: %w", c.cfg.Address, err)
		}
	} else {
		target, err = NetIDFromIP(host)
		if err != nil {
			return fmt.Errorf("connect %s: cannot derive AMS Net ID: %w", c.cfg.Address, err)
		}
	}

	sock, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), c.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.Address, err)
	}
	if tcpConn, ok := sock.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	c.conn = &conn{
		sock:       sock,
		local:      NetID{127, 0, 0, 1, 1, 1},
		localPort:  32905,
		remote:     target,
		remotePort: c.cfg.AmsPort,
		timeout:    c.cfg.Timeout,
	}

	device, err := c.readDeviceInfo()
	if err != nil {
		sock.Close()
		c.conn = nil
		return fmt.Errorf("connect %s: device info: %w", c.cfg.Address, err)
	}
	c.device = device
	c.connected = true

	return nil
}

// Close releases acquired symbol handles best-effort and drops the session.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		for _, entry := range c.symbols {
			if entry.handle != 0 {
				_ = c.releaseHandle(entry.handle)
				entry.handle = 0
			}
		}
		c.conn.close()
		c.conn = nil
	}
	c.connected = false
}

// IsConnected reports whether the session is believed alive.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Device returns the device name and version reported at connect time.
func (c *Client) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// ReadSymbol reads one symbol by name (e.g. "MAIN.Counter" or "GVL.Temp")
// and returns its value decoded to the matching Go type.
func (c *Client) ReadSymbol(name string) (interface{}, error) {
	if c == nil {
		return nil, errors.New("nil client")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.New("not connected")
	}

	entry, err := c.symbolEntry(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if entry.handle == 0 {
		handle, err := c.acquireHandle(name)
		if err != nil {
			c.noteFailure(err)
			return nil, fmt.Errorf("read %s: acquire handle: %w", name, err)
		}
		entry.handle = handle
	}

	req := make([]byte, 12)
	binary.LittleEndian.PutUint32(req[0:4], idxValueByHandle)
	binary.LittleEndian.PutUint32(req[4:8], entry.handle)
	binary.LittleEndian.PutUint32(req[8:12], entry.size)

	resp, err := c.conn.request(cmdRead, req)
	if err != nil {
		c.noteFailure(err)
		// A stale handle is re-acquired on the next read.
		var adsErr *Error
		if errors.As(err, &adsErr) {
			entry.handle = 0
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	// Response: result(4) length(4) data(n).
	if len(resp) < 8 {
		return nil, fmt.Errorf("read %s: short response: %d bytes", name, len(resp))
	}
	if result := binary.LittleEndian.Uint32(resp[0:4]); result != 0 {
		entry.handle = 0
		return nil, fmt.Errorf("read %s: %w", name, &Error{Code: result})
	}
	length := binary.LittleEndian.Uint32(resp[4:8])
	if uint32(len(resp)-8) < length {
		return nil, fmt.Errorf("read %s: truncated response: want %d bytes, have %d", name, length, len(resp)-8)
	}

	value, err := decodeValue(entry.typeCode, resp[8:8+length])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}

// noteFailure marks the session dead on transport errors. ADS-level errors
// leave the session up; the device answered.
func (c *Client) noteFailure(err error) {
	var adsErr *Error
	if !errors.As(err, &adsErr) {
		c.connected = false
	}
}

// symbolEntry returns the cached entry for a symbol, querying the PLC for
// symbol info on first use. Caller holds c.mu.
func (c *Client) symbolEntry(name string) (*symbolEntry, error) {
	if entry, ok := c.symbols[name]; ok {
		return entry, nil
	}

	nameBytes := append([]byte(name), 0)
	req := make([]byte, 16+len(nameBytes))
	binary.LittleEndian.PutUint32(req[0:4], idxSymbolInfoByNameEx)
	binary.LittleEndian.PutUint32(req[8:12], 0xFFFF)
	binary.LittleEndian.PutUint32(req[12:16], uint32(len(nameBytes)))
	copy(req[16:], nameBytes)

	resp, err := c.conn.request(cmdReadWrite, req)
	if err != nil {
		c.noteFailure(err)
		return nil, fmt.Errorf("symbol info: %w", err)
	}

	if len(resp) < 8 {
		return nil, fmt.Errorf("symbol info: short response: %d bytes", len(resp))
	}
	if result := binary.LittleEndian.Uint32(resp[0:4]); result != 0 {
		return nil, fmt.Errorf("symbol info: %w", &Error{Code: result})
	}
	readLen := binary.LittleEndian.Uint32(resp[4:8])
	if uint32(len(resp)-8) < readLen {
		return nil, fmt.Errorf("symbol info: truncated response")
	}

	entry, err := parseSymbolEntry(resp[8 : 8+readLen])
	if err != nil {
		return nil, err
	}
	c.symbols[name] = entry
	return entry, nil
}

// parseSymbolEntry decodes the leading fields of an AdsSymbolEntry:
// entryLength(4) indexGroup(4) indexOffset(4) size(4) dataType(4) flags(4)
// nameLength(2) typeLength(2) commentLength(2) name type comment.
func parseSymbolEntry(data []byte) (*symbolEntry, error) {
	if len(data) < 30 {
		return nil, fmt.Errorf("symbol info too short: %d bytes", len(data))
	}
	return &symbolEntry{
		size:     binary.LittleEndian.Uint32(data[12:16]),
		typeCode: mapAdsType(binary.LittleEndian.Uint32(data[16:20])),
	}, nil
}

// acquireHandle obtains a read handle for a symbol name. Caller holds c.mu.
func (c *Client) acquireHandle(name string) (uint32, error) {
	nameBytes := append([]byte(name), 0)
	req := make([]byte, 16+len(nameBytes))
	binary.LittleEndian.PutUint32(req[0:4], idxHandleByName)
	binary.LittleEndian.PutUint32(req[8:12], 4)
	binary.LittleEndian.PutUint32(req[12:16], uint32(len(nameBytes)))
	copy(req[16:], nameBytes)

	resp, err := c.conn.request(cmdReadWrite, req)
	if err != nil {
		return 0, err
	}

	if len(resp) < 12 {
		return 0, fmt.Errorf("short response: %d bytes", len(resp))
	}
	if result := binary.LittleEndian.Uint32(resp[0:4]); result != 0 {
		return 0, &Error{Code: result}
	}
	return binary.LittleEndian.Uint32(resp[8:12]), nil
}

// releaseHandle frees a handle on the PLC. Caller holds c.mu.
func (c *Client) releaseHandle(handle uint32) error {
	req := make([]byte, 16)
	binary.LittleEndian.PutUint32(req[0:4], idxReleaseHandle)
	binary.LittleEndian.PutUint32(req[8:12], 4)
	binary.LittleEndian.PutUint32(req[12:16], handle)

	_, err := c.conn.request(cmdWrite, req)
	return err
}

// readDeviceInfo verifies the session and returns "name vX.Y.Z".
// Caller holds c.mu.
func (c *Client) readDeviceInfo() (string, error) {
	resp, err := c.conn.request(cmdReadDeviceInfo, nil)
	if err != nil {
		return "", err
	}

	// Response: result(4) major(1) minor(1) build(2) name(16).
	if len(resp) < 24 {
		return "", fmt.Errorf("short response: %d bytes", len(resp))
	}
	if result := binary.LittleEndian.Uint32(resp[0:4]); result != 0 {
		return "", &Error{Code: result}
	}

	name := resp[8:24]
	end := len(name)
	for i, b := range name {
		if b == 0 {
			end = i
			break
		}
	}

	return fmt.Sprintf("%s v%d.%d.%d", name[:end], resp[4], resp[5],
		binary.LittleEndian.Uint16(resp[6:8])), nil
}
