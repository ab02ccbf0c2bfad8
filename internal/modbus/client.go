package modbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"

	"github.com/openvent/helios-core/internal/infrastructure/config"
	"github.com/openvent/helios-core/internal/variable"
)

// Client talks to a Helios easyControls unit over ModBus TCP.
//
// Every exchange is bounded by the configured transport timeout. The
// client performs no locking of its own: the coordinator owns the
// exclusive-access lock around the bus, so reads and writes never
// interleave mid-transaction.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client

	mu     sync.Mutex
	closed bool
}

// Connect opens a ModBus TCP connection to the unit.
func Connect(cfg config.DeviceConfig) (*Client, error) {
	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	handler.Timeout = cfg.TransportTimeout()
	handler.SlaveId = byte(cfg.UnitID)

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connecting to %s:%d: %w", ErrTransport, cfg.Host, cfg.Port, err)
	}

	return &Client{
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

// ReadVariable fetches the current raw value string for a variable.
//
// The exchange writes the variable name into the register window, then
// reads the window back and strips the echoed "name=" prefix. The raw
// value string is returned undecoded; decode rules live with the
// variable definitions.
func (c *Client) ReadVariable(ctx context.Context, v variable.Variable) (string, error) {
	if err := c.checkUsable(ctx); err != nil {
		return "", err
	}

	request := packASCII(v.Name)
	if _, err := c.client.WriteMultipleRegisters(registerWindow, uint16(len(request)/2), request); err != nil {
		return "", fmt.Errorf("%w: selecting %s: %w", ErrTransport, v.Name, err)
	}

	// #nosec G115 -- register counts are tiny, derived from catalog sizes
	answer, err := c.client.ReadHoldingRegisters(registerWindow, uint16(v.RegisterCount()))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", ErrTransport, v.Name, err)
	}

	return parseResponse(v.Name, unpackASCII(answer))
}

// WriteVariable sends a raw value string to the unit.
func (c *Client) WriteVariable(ctx context.Context, v variable.Variable, value string) error {
	if err := c.checkUsable(ctx); err != nil {
		return err
	}

	if len(value) > v.Size {
		return fmt.Errorf("%w: %s=%q (max %d chars)", ErrValueTooLong, v.Name, value, v.Size)
	}

	request := packASCII(v.Name + "=" + value)
	if _, err := c.client.WriteMultipleRegisters(registerWindow, uint16(len(request)/2), request); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrTransport, v.Name, err)
	}

	return nil
}

// Close shuts the TCP connection. Subsequent exchanges fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.handler.Close()
}

// checkUsable rejects exchanges on a closed client or a cancelled context.
// The underlying library does not take a context; cancellation between
// exchanges plus the per-exchange timeout bound every call.
func (c *Client) checkUsable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}
