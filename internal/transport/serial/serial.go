// Package serial talks to the host over a serial line.
//
// Commands arrive one per line. Telemetry goes out as "D <frame>" and
// "S <frame>" lines; frames that are not JSON are base64 encoded. The host is
// considered connected while the port is open.
package serial

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	goserial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/command"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

const (
	reopenDelay = time.Second
	// maxLine bounds the read buffer. Longer lines are discarded unread.
	maxLine = 256
)

// Config selects the port.
type Config struct {
	Port     string
	BaudRate uint
}

// Transport is the serial adapter.
type Transport struct {
	cfg  Config
	log  *logrus.Entry
	open func(goserial.OpenOptions) (io.ReadWriteCloser, error)

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// New returns a serial transport.
func New(cfg Config, logger *logrus.Logger) *Transport {
	return &Transport{
		cfg:  cfg,
		log:  logger.WithField("transport", "serial"),
		open: goserial.Open,
	}
}

func (t *Transport) Name() string { return "serial" }

func (t *Transport) options() goserial.OpenOptions {
	return goserial.OpenOptions{
		PortName:              t.cfg.Port,
		BaudRate:              t.cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            goserial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
}

// Run keeps the port open, reopening it after errors, until ctx is done.
func (t *Transport) Run(ctx context.Context, events chan<- transport.Event) error {
	for {
		port, err := t.open(t.options())
		if err != nil {
			t.log.Warnf("open %s: %v", t.cfg.Port, err)
		} else {
			t.log.Infof("serial port opened on %s at %d baud", t.cfg.Port, t.cfg.BaudRate)
			t.serve(ctx, events, port)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reopenDelay):
		}
	}
}

func (t *Transport) serve(ctx context.Context, events chan<- transport.Event, port io.ReadWriteCloser) {
	t.mu.Lock()
	t.port = port
	t.mu.Unlock()

	// A blocked Read only returns once the port is closed.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	transport.Emit(ctx, events, transport.Event{Kind: transport.Connected})

	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, 0, maxLine), maxLine)
	sc.Split(boundedLines(maxLine, func(n int) {
		t.log.Debugf("dropping oversized line (%d bytes)", n)
	}))
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		if len(s) > command.MaxLength {
			t.log.Debugf("dropping oversized line (%d bytes)", len(s))
			continue
		}
		if !transport.Emit(ctx, events, transport.Event{Kind: transport.Command, Data: []byte(s)}) {
			break
		}
	}
	if ctx.Err() == nil {
		if err := sc.Err(); err != nil {
			t.log.Warnf("serial read error: %v", err)
		} else {
			t.log.Warn("serial port closed")
		}
	}

	t.mu.Lock()
	t.port = nil
	t.mu.Unlock()
	port.Close()
	transport.Emit(ctx, events, transport.Event{Kind: transport.Disconnected})
}

// boundedLines splits on '\n' like bufio.ScanLines, except that a line
// reaching max bytes is consumed up to its newline and reported to dropped
// instead of growing the buffer into bufio.ErrTooLong.
func boundedLines(max int, dropped func(n int)) bufio.SplitFunc {
	skipped := -1
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if skipped >= 0 {
				dropped(skipped + i)
				skipped = -1
				return i + 1, nil, nil
			}
			return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
		}
		switch {
		case len(data) >= max:
			if skipped < 0 {
				skipped = 0
			}
			skipped += len(data)
			return len(data), nil, nil
		case atEOF && skipped >= 0:
			dropped(skipped + len(data))
			skipped = -1
			return len(data), nil, nil
		case atEOF && len(data) > 0:
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// Send writes one telemetry line.
func (t *Transport) Send(ch telemetry.Channel, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return transport.ErrNotConnected
	}

	body := string(frame)
	if !json.Valid(frame) {
		body = base64.StdEncoding.EncodeToString(frame)
	}
	if _, err := fmt.Fprintf(t.port, "%c %s\n", prefix(ch), body); err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

func prefix(ch telemetry.Channel) byte {
	if ch == telemetry.Status {
		return 'S'
	}
	return 'D'
}
