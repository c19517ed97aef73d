package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/danmuck/rpcscope/internal/message"
	"github.com/danmuck/rpcscope/internal/session"
)

var errQuit = errors.New("quit")

const consoleHelp = `commands:
  connect | disconnect          open or close the session
  ping                          send a ping request
  send <method> [params]        send a request; params is JSON
  notify <method> [params]      send a notification
  batch <json>                  send [{"method":..,"params":..},...] as one batch
  inject <frame>                process a frame as if it had been received
  fastping on|off|<ms>          toggle the ping loop or set its interval
  limit <n> | chunk <n>         buffer limit and forced drop chunk size
  prefer pending|batches on|off buffer retention preferences
  url <ws-url> | offline on|off next connection target
  log [n]                       print the last n entries (all by default)
  filter [method=..] [id=..] [text=..]
  where <expr>                  print entries matching an expression
  stats                         ping, latency and per-method statistics
  export <file> | clear         save or empty the log
  state | help | quit`

// syncWriter serializes writes from the console and the live entry feed.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// console drives a session from line commands.
type console struct {
	m   *session.Manager
	out io.Writer
}

// run executes commands from r until EOF or quit.
func (c *console) run(r io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if prompt {
			fmt.Fprint(c.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := c.exec(scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *console) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "connect":
		c.m.Connect()
	case "disconnect":
		c.m.Disconnect()
	case "ping":
		c.m.SendPing()
	case "send", "notify":
		method, raw, _ := strings.Cut(rest, " ")
		if method == "" {
			return fmt.Errorf("usage: %s <method> [params]", cmd)
		}
		params, err := parseParams(raw)
		if err != nil {
			return err
		}
		if cmd == "send" {
			c.m.Send(method, params)
		} else {
			c.m.Notify(method, params)
		}
	case "batch":
		reqs, err := parseBatch(rest)
		if err != nil {
			return err
		}
		c.m.SendBatch(reqs)
	case "inject":
		if rest == "" {
			return errors.New("usage: inject <frame>")
		}
		c.m.InjectFrame(rest)
	case "fastping":
		return c.fastPing(rest)
	case "limit":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		return c.m.SetBufferLimit(n)
	case "chunk":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("chunk: %w", err)
		}
		return c.m.SetDropChunkSize(n)
	case "prefer":
		return c.prefer(rest)
	case "url":
		if rest == "" {
			fmt.Fprintln(c.out, c.m.URL())
			return nil
		}
		c.m.SetURL(rest)
	case "offline":
		on, err := parseToggle(rest)
		if err != nil {
			return err
		}
		c.m.SetOffline(on)
	case "state":
		c.printState()
	case "log":
		entries := c.m.Entries()
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			if n >= 0 && n < len(entries) {
				entries = entries[len(entries)-n:]
			}
		}
		printEntries(c.out, entries)
	case "filter":
		f, err := parseFilter(rest)
		if err != nil {
			return err
		}
		printEntries(c.out, message.FilterEntries(c.m.Entries(), f))
	case "where":
		view, err := applyFilters(c.m.Entries(), message.QuickFilter{}, rest)
		if err != nil {
			return err
		}
		printEntries(c.out, view)
	case "stats":
		printStats(c.out, c.m.Entries())
	case "export":
		if rest == "" {
			return errors.New("usage: export <file>")
		}
		return exportLog(rest, c.m.Entries())
	case "clear":
		c.m.ClearLog()
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// fastPing takes a number as an interval in milliseconds; only words toggle.
func (c *console) fastPing(arg string) error {
	if ms, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
		return c.m.SetFastPingInterval(time.Duration(ms) * time.Millisecond)
	}
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on":
		c.m.SetFastPing(true)
	case "off":
		c.m.SetFastPing(false)
	default:
		return errors.New("usage: fastping on|off|<ms>")
	}
	return nil
}

func (c *console) prefer(arg string) error {
	what, toggle, _ := strings.Cut(arg, " ")
	on, err := parseToggle(strings.TrimSpace(toggle))
	if err != nil {
		return err
	}
	switch what {
	case "pending":
		c.m.SetPreferPending(on)
	case "batches":
		c.m.SetPreferBatches(on)
	default:
		return errors.New("usage: prefer pending|batches on|off")
	}
	return nil
}

func (c *console) printState() {
	reqs, batches := c.m.PendingCounts()
	fp := c.m.FastPing()
	fmt.Fprintf(c.out, "state=%s url=%s offline=%t\n", c.m.State(), c.m.URL(), c.m.Offline())
	fmt.Fprintf(c.out, "entries=%d pending=%d batches=%d policy=%s\n", len(c.m.Entries()), reqs, batches, c.m.Policy())
	fmt.Fprintf(c.out, "fastping=%t interval=%s\n", fp.Enabled, fp.Interval)
}

func parseParams(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := jsonrpc.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	switch jsonrpc.KindOf(v) {
	case jsonrpc.KindObject, jsonrpc.KindArray:
		return v, nil
	default:
		return nil, errors.New("params must be a JSON object or array")
	}
}

func parseBatch(raw string) ([]session.BatchRequest, error) {
	v, err := jsonrpc.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.New("batch must be a JSON array")
	}
	reqs := make([]session.BatchRequest, 0, len(items))
	for i, item := range items {
		method, ok := jsonrpc.StringField(item, "method")
		if !ok || method == "" {
			return nil, fmt.Errorf("batch[%d]: method is required", i)
		}
		params, _ := jsonrpc.Field(item, "params")
		reqs = append(reqs, session.BatchRequest{Method: method, Params: params})
	}
	return reqs, nil
}

func parseFilter(raw string) (message.QuickFilter, error) {
	var f message.QuickFilter
	for _, field := range strings.Fields(raw) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return f, fmt.Errorf("filter: expected key=value, got %q", field)
		}
		switch key {
		case "method":
			f.Method = value
		case "id":
			f.ID = value
		case "text":
			f.Text = value
		default:
			return f, fmt.Errorf("filter: unknown key %q", key)
		}
	}
	return f, nil
}

func parseToggle(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
}

func exportLog(path string, entries []message.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := message.Export(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
