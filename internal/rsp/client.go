// Package rsp is an oracle over the GDB Remote Serial Protocol. Memory is
// read with 'm' packets; symbols come from a local copy of the target's
// executable.
package rsp

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/wnxd/schedscope/internal/expr"
	"github.com/wnxd/schedscope/oracle"
)

const (
	defaultPacketSize = 0x400
	maxRetransmit     = 3
)

var (
	ErrStub         = errors.New("stub error")
	ErrTargetExited = errors.New("target exited")
)

type Symbols interface {
	Arch() oracle.Arch
	ByteOrder() oracle.ByteOrder
	FindSymbol(name string) (oracle.Symbol, error)
}

type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	noAck   bool
	maxRead uint64
	syms    Symbols
	logger  *slog.Logger
}

func Dial(ctx context.Context, addr string, syms Symbols, logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, err := Open(conn, syms, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Open negotiates packet size and no-ack mode on an established connection.
func Open(conn net.Conn, syms Symbols, logger *slog.Logger) (*Client, error) {
	c := &Client{
		conn:    conn,
		r:       bufio.NewReader(conn),
		maxRead: (defaultPacketSize - 4) / 2,
		syms:    syms,
		logger:  logger,
	}
	reply, err := c.request("qSupported:swbreak+;vContSupported+")
	if err != nil {
		return nil, fmt.Errorf("rsp: qSupported: %w", err)
	}
	var noAck bool
	for _, feature := range strings.Split(reply, ";") {
		if size, ok := strings.CutPrefix(feature, "PacketSize="); ok {
			if n, err := strconv.ParseUint(size, 16, 64); err == nil && n > 4 {
				c.maxRead = (n - 4) / 2
			}
		} else if feature == "QStartNoAckMode+" {
			noAck = true
		}
	}
	if noAck {
		if reply, err = c.request("QStartNoAckMode"); err != nil {
			return nil, err
		}
		c.noAck = reply == "OK"
	}
	logger.Debug("RSP session open.", "remote", conn.RemoteAddr(), "max_read", c.maxRead, "no_ack", c.noAck)
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(payload string) error {
	for range maxRetransmit {
		if err := writePacket(c.conn, payload); err != nil {
			return err
		} else if c.noAck {
			return nil
		}
		ack, err := c.r.ReadByte()
		if err != nil {
			return err
		} else if ack == '+' {
			return nil
		}
	}
	return fmt.Errorf("rsp: %q not acknowledged", payload)
}

func (c *Client) recv() (string, error) {
	for range maxRetransmit {
		data, err := readPacket(c.r)
		if errors.Is(err, errChecksum) && !c.noAck {
			if _, err = c.conn.Write([]byte{'-'}); err != nil {
				return "", err
			}
			continue
		} else if err != nil {
			return "", err
		}
		if !c.noAck {
			if _, err = c.conn.Write([]byte{'+'}); err != nil {
				return "", err
			}
		}
		return string(data), nil
	}
	return "", errChecksum
}

func (c *Client) request(payload string) (string, error) {
	if err := c.send(payload); err != nil {
		return "", err
	}
	return c.recv()
}

func (c *Client) Arch() oracle.Arch {
	return c.syms.Arch()
}

func (c *Client) ByteOrder() oracle.ByteOrder {
	return c.syms.ByteOrder()
}

func (c *Client) LookupSymbol(name string) (oracle.Symbol, error) {
	return c.syms.FindSymbol(name)
}

func (c *Client) Evaluate(src string) (oracle.Value, error) {
	return expr.Evaluate(c, src)
}

func (c *Client) ReadBytes(addr, size uint64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, 0, size)
	for uint64(len(out)) < size {
		cur := addr + uint64(len(out))
		n := min(size-uint64(len(out)), c.maxRead)
		reply, err := c.request(fmt.Sprintf("m%x,%x", cur, n))
		if err != nil {
			return nil, &oracle.ReadError{Addr: addr, Size: size, Err: err}
		} else if isError(reply) || reply == "" {
			return nil, &oracle.ReadError{Addr: addr, Size: size, Err: fmt.Errorf("%w: %s", ErrStub, reply)}
		}
		b, err := hex.DecodeString(reply)
		if err != nil {
			return nil, &oracle.ReadError{Addr: addr, Size: size, Err: err}
		}
		// stubs may stop early at a page boundary; ask again for the rest
		out = append(out, b[:min(uint64(len(b)), n)]...)
	}
	return out, nil
}

// ContinueUntil plants a breakpoint at addr, resumes the target and waits
// for it to stop. Cancelling ctx interrupts the target.
func (c *Client) ContinueUntil(ctx context.Context, addr uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	bp := fmt.Sprintf("%x,1", addr)
	reply, err := c.request("Z0," + bp)
	if err != nil {
		return err
	} else if reply != "OK" {
		return fmt.Errorf("%w: breakpoint at %#x: %q", ErrStub, addr, reply)
	}
	defer func() {
		if reply, err := c.request("z0," + bp); err != nil || reply != "OK" {
			c.logger.Warn("Breakpoint removal failed.", "addr", fmt.Sprintf("%#x", addr), "reply", reply, "error", err)
		}
	}()
	if err = c.send("vCont;c"); err != nil {
		return err
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Write([]byte{interrupt})
		case <-stop:
		}
	}()
	var legacy bool
	for {
		reply, err = c.recv()
		if err != nil {
			return err
		}
		switch {
		case reply == "" && !legacy:
			// no vCont, fall back to plain continue
			legacy = true
			if err = c.send("c"); err != nil {
				return err
			}
		case reply == "":
			return fmt.Errorf("%w: continue", oracle.ErrNotSupported)
		case reply[0] == 'S' || reply[0] == 'T':
			c.logger.Debug("Target stopped.", "reply", reply)
			return ctx.Err()
		case reply[0] == 'W' || reply[0] == 'X':
			return fmt.Errorf("%w: %s", ErrTargetExited, reply)
		case reply[0] == 'O':
			// console output while running
			continue
		default:
			return fmt.Errorf("%w: unexpected stop reply %q", ErrStub, reply)
		}
	}
}

func isError(reply string) bool {
	if len(reply) != 3 || reply[0] != 'E' {
		return false
	}
	_, err := strconv.ParseUint(reply[1:], 16, 8)
	return err == nil
}
