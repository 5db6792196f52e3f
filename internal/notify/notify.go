// Package notify carries the "prefixes changed" signal from whoever edits the list
// to every running engine. Each engine listens on a unix socket in a shared run
// directory; senders broadcast to every socket found there.
package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"prefixhider/internal/logging"
)

// ActionUpdatePrefixes asks the receiver to re-fetch the prefix list.
const ActionUpdatePrefixes = "updatePrefixes"

// DefaultTimeout bounds one exchange with one receiver.
const DefaultTimeout = 2 * time.Second

const socketSuffix = ".sock"

// Message is the request sent to a listener, one JSON object per line.
type Message struct {
	Action string `json:"action"`
}

// Reply acknowledges a Message.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler is invoked for each recognized message.
type Handler func(Message)

// Listener accepts notifications on a unix socket named <run dir>/<uuid>.sock.
type Listener struct {
	ln      net.Listener
	path    string
	handler Handler
	timeout time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Listen creates the run directory if needed and starts accepting connections.
func Listen(runDir string, handler Handler) (*Listener, error) {
	if err := os.MkdirAll(runDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create run dir: %w", err)
	}
	path := filepath.Join(runDir, uuid.NewString()+socketSuffix)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}

	l := &Listener{ln: ln, path: path, handler: handler, timeout: DefaultTimeout}
	l.wg.Add(1)
	go l.acceptLoop()
	logging.Notify("listening on %s", path)
	return l, nil
}

// Path returns the socket path.
func (l *Listener) Path() string { return l.path }

// Close stops accepting, waits for in-flight connections and removes the socket.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.ln.Close()
	l.wg.Wait()
	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !l.closed.Load() {
				logging.NotifyWarn("accept failed: %v", err)
			}
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serve(conn)
		}()
	}
}

func (l *Listener) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(l.timeout))

	var reply Reply
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		logging.NotifyWarn("read failed: %v", err)
		return
	}

	var msg Message
	switch {
	case json.Unmarshal(line, &msg) != nil:
		reply.Error = "malformed message"
	case msg.Action != ActionUpdatePrefixes:
		reply.Error = fmt.Sprintf("unknown action %q", msg.Action)
	default:
		logging.Notify("received %s", msg.Action)
		if l.handler != nil {
			l.handler(msg)
		}
		reply.OK = true
	}

	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		logging.NotifyWarn("reply failed: %v", err)
	}
}

// Send delivers msg to the socket at path and waits for the acknowledgement.
func Send(ctx context.Context, path string, msg Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	var reply Reply
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&reply); err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}

// Targets lists the sockets currently in runDir.
func Targets(runDir string) ([]string, error) {
	return filepath.Glob(filepath.Join(runDir, "*"+socketSuffix))
}

// Broadcast tells every listener in runDir that the prefixes changed and returns how
// many acknowledged. Per-target failures are logged and do not fail the broadcast;
// sockets nobody answers on are removed.
func Broadcast(ctx context.Context, runDir string, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	targets, err := Targets(runDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list targets: %w", err)
	}

	var notified atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	for _, path := range targets {
		eg.Go(func() error {
			tctx, cancel := context.WithTimeout(egCtx, timeout)
			defer cancel()

			err := Send(tctx, path, Message{Action: ActionUpdatePrefixes})
			if err == nil {
				notified.Add(1)
				return nil
			}
			logging.NotifyWarn("could not notify %s: %v", filepath.Base(path), err)
			if isStale(err) {
				_ = os.Remove(path)
			}
			return nil
		})
	}
	_ = eg.Wait()

	n := int(notified.Load())
	logging.Notify("notified %d of %d observers", n, len(targets))
	return n, ctx.Err()
}

func isStale(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Op != "dial" {
		return false
	}
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
