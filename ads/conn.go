package ads

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// ADS command IDs.
const (
	cmdReadDeviceInfo uint16 = 0x0001
	cmdRead           uint16 = 0x0002
	cmdWrite          uint16 = 0x0003
	cmdReadWrite      uint16 = 0x0009
)

const stateFlagRequest uint16 = 0x0004

// Index groups for symbol access.
const (
	idxHandleByName   uint32 = 0xF003 // acquire handle for a symbol name
	idxValueByHandle  uint32 = 0xF005 // read value through a handle
	idxReleaseHandle  uint32 = 0xF006 // release a handle
	idxSymbolInfoByNameEx uint32 = 0xF009 // extended symbol info by name
)

const (
	// DefaultTCPPort is the ADS/AMS router TCP port.
	DefaultTCPPort = 48898
	// DefaultAmsPort is the TwinCAT 3 PLC runtime 1 AMS port.
	DefaultAmsPort uint16 = 851
)

const (
	tcpHeaderLen = 6
	amsHeaderLen = 32
)

// conn frames AMS packets over a TCP connection. Requests carry a
// monotonically increasing invoke ID that the matching response must echo.
// One request is in flight at a time; the Client serializes callers.
type conn struct {
	sock     net.Conn
	local    NetID
	localPort uint16
	remote   NetID
	remotePort uint16
	timeout  time.Duration
	invokeID atomic.Uint32
}

// request sends one ADS command and returns the response payload
// (everything after the AMS header).
func (c *conn) request(cmd uint16, payload []byte) ([]byte, error) {
	id := c.invokeID.Add(1)

	buf := make([]byte, tcpHeaderLen+amsHeaderLen+len(payload))
	// AMS/TCP header: 2 reserved bytes, then the length of what follows.
	binary.LittleEndian.PutUint32(buf[2:6], uint32(amsHeaderLen+len(payload)))
	// AMS header, all fields little-endian.
	copy(buf[6:12], c.remote[:])
	binary.LittleEndian.PutUint16(buf[12:14], c.remotePort)
	copy(buf[14:20], c.local[:])
	binary.LittleEndian.PutUint16(buf[20:22], c.localPort)
	binary.LittleEndian.PutUint16(buf[22:24], cmd)
	binary.LittleEndian.PutUint16(buf[24:26], stateFlagRequest)
	binary.LittleEndian.PutUint32(buf[26:30], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[30:34], 0) // error code
	binary.LittleEndian.PutUint32(buf[34:38], id)
	copy(buf[38:], payload)

	if c.timeout > 0 {
		if err := c.sock.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if _, err := c.sock.Write(buf); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	return c.readResponse(id)
}

func (c *conn) readResponse(wantID uint32) ([]byte, error) {
	hdr := make([]byte, tcpHeaderLen)
	if _, err := io.ReadFull(c.sock, hdr); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.LittleEndian.Uint32(hdr[2:6])
	if length < amsHeaderLen {
		return nil, fmt.Errorf("short AMS frame: %d bytes", length)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(c.sock, frame); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	errCode := binary.LittleEndian.Uint32(frame[24:28])
	invokeID := binary.LittleEndian.Uint32(frame[28:32])

	if invokeID != wantID {
		return nil, fmt.Errorf("invoke ID mismatch: sent %d, received %d", wantID, invokeID)
	}
	if errCode != 0 {
		return nil, &Error{Code: errCode}
	}

	return frame[amsHeaderLen:], nil
}

func (c *conn) close() error {
	if c.sock != nil {
		return c.sock.Close()
	}
	return nil
}
