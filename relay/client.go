// Package relay receives encoded frames from the external video
// transport. The relay protocol is deliberately thin: a TCP stream of
// big-endian uint32 length-prefixed image buffers; everything upstream
// of that (capture device, encoding, fan-out) is the relay's concern.
package relay

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// maxFrameBytes bounds a single encoded frame. Anything larger is a
// corrupt length prefix, not a frame.
const maxFrameBytes = 16 << 20

// FrameHandler receives each encoded frame buffer as it arrives.
type FrameHandler interface {
	Ingest(buf []byte)
}

// DisconnectHandler is notified when the relay connection drops, so
// the session can discard held frames and motion state.
type DisconnectHandler interface {
	Disconnect()
}

// Client maintains a connection to the relay and pushes every received
// frame to the handler.
type Client struct {
	address string
	handler FrameHandler

	// OnDisconnect, when set, runs after each connection loss.
	OnDisconnect DisconnectHandler

	// ReconnectDelay is the initial backoff between connection
	// attempts; it doubles up to ReconnectMax.
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
}

// NewClient creates a relay client delivering frames to handler.
func NewClient(address string, handler FrameHandler) *Client {
	return &Client{
		address:        address,
		handler:        handler,
		ReconnectDelay: time.Second,
		ReconnectMax:   30 * time.Second,
	}
}

// Run connects, reads frames and reconnects with backoff until the
// context is cancelled.
func (c *Client) Run(ctx context.Context) {
	delay := c.ReconnectDelay
	for {
		frames, err := c.readStream(ctx)
		if ctx.Err() != nil {
			return
		}
		if frames > 0 {
			// The connection was healthy before it dropped; retry
			// promptly instead of where the backoff last left off.
			delay = c.ReconnectDelay
		}
		if c.OnDisconnect != nil {
			c.OnDisconnect.Disconnect()
		}
		slog.Warn("relay connection lost, reconnecting",
			"address", c.address, "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.ReconnectMax {
			delay = c.ReconnectMax
		}
	}
}

// readStream holds one connection open and delivers its frames,
// returning how many were delivered so the caller can distinguish a
// dead endpoint from a stream that dropped mid-flight.
func (c *Client) readStream(ctx context.Context) (int, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	slog.Info("connected to frame relay", "address", c.address)

	// Close the connection when the context ends so the blocking read
	// below unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := bufio.NewReaderSize(conn, 256*1024)
	frames := 0
	for {
		buf, err := readFrame(reader)
		if err != nil {
			return frames, err
		}
		c.handler.Ingest(buf)
		frames++
	}
}

// readFrame reads one length-prefixed frame buffer.
func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxFrameBytes {
		return nil, fmt.Errorf("implausible frame length %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
