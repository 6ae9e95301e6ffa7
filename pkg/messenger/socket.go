package messenger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/command"
)

// The socket bridge joins a joystick process and a motor process on one host.
// Protocol: line-delimited JSON.
//
//	client: {"topic": "motor:command", "payload": {"command": "set_speed", "speed": 50}}
//	server: {"status": "ok"} or {"status": "error", "error": "..."}

const DefaultSocketPath = "/tmp/telescope-motor.sock"

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Serve accepts socket clients and republishes what they send onto pub.  It
// blocks until ctx is done.
func Serve(ctx context.Context, socketPath string, pub Publisher, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "messenger", "socket", socketPath)

	if err := os.RemoveAll(socketPath); err != nil {
		return errors.Wrap(err, "remove existing socket")
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", socketPath)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", socketPath)
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info("Listening for publishers")
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Accept failed", "err", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, pub, log)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, pub Publisher, log *slog.Logger) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)
	for scanner.Scan() {
		resp := response{Status: "ok"}
		if err := republish(ctx, scanner.Bytes(), pub); err != nil {
			resp = response{Status: "error", Error: err.Error()}
			log.Warn("Rejected message", "err", err)
		}
		if err := encoder.Encode(resp); err != nil {
			log.Warn("Failed to send response", "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Warn("Connection read failed", "err", err)
	}
}

func republish(ctx context.Context, line []byte, pub Publisher) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return errors.Wrap(err, "parse message")
	}
	if env.Topic == "" {
		return errors.New("message has no topic")
	}
	record, err := command.Unmarshal(env.Payload)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, env.Topic, record)
}

// Client publishes to a remote Serve over its socket.
type Client struct {
	lock       sync.Mutex
	socketPath string
	conn       net.Conn
	reader     *bufio.Reader
}

var _ Publisher = (*Client)(nil)

// Dial connects to the socket at socketPath.
func Dial(socketPath string) (*Client, error) {
	c := &Client{socketPath: socketPath}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", c.socketPath)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Publish sends payload and waits for the server to accept it.  A broken
// connection is redialled once.
func (c *Client) Publish(ctx context.Context, topic string, payload command.Record) error {
	data, err := command.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	line, err := json.Marshal(envelope{Topic: topic, Payload: data})
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	err = c.roundTrip(ctx, line)
	if err != nil && ctx.Err() == nil && c.isBroken(err) {
		if cerr := c.connect(); cerr != nil {
			return cerr
		}
		err = c.roundTrip(ctx, line)
	}
	return err
}

type remoteError string

func (e remoteError) Error() string {
	return fmt.Sprintf("remote error: %s", string(e))
}

func (c *Client) isBroken(err error) bool {
	_, remote := errors.Cause(err).(remoteError)
	return !remote
}

func (c *Client) roundTrip(ctx context.Context, line []byte) error {
	if c.conn == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "send message")
	}
	reply, err := c.reader.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if resp.Status != "ok" {
		return errors.WithStack(remoteError(resp.Error))
	}
	return nil
}

func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
