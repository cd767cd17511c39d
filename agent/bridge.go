/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package agent

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/log"
)

// DefaultSocketPath is the default Unix socket path the supervisor listens
// on.
const DefaultSocketPath = "/tmp/sboxagent.sock"

// DefaultTimeout bounds every blocking agent operation.
const DefaultTimeout = 30 * time.Second

// DefaultHeartbeatInterval is how often a connected Bridge sends a
// heartbeat.
const DefaultHeartbeatInterval = 30 * time.Second

var (
	// ErrUnavailable is returned by every Bridge operation once the agent
	// has been determined unreachable. Callers downgrade to internal
	// validation rather than treating this as a pipeline failure.
	ErrUnavailable = errors.New("agent: unavailable")
)

// Bridge is a best-effort, lazily-connected client for the agent IPC
// protocol. A Bridge is safe for concurrent Send/Command calls from
// multiple goroutines, but only one caller uses the
// underlying connection at a time; concurrent calls serialize on an
// internal mutex rather than racing the wire.
type Bridge struct {
	socketPath string
	timeout    time.Duration
	lg         *log.KVLogger
	bus        *eventbus.Bus

	mtx  sync.Mutex
	conn net.Conn
}

// New builds a Bridge. socketPath/timeout default to DefaultSocketPath and
// DefaultTimeout when zero-valued. bus, if non-nil, receives an
// "agent.unavailable" event each time a connection attempt fails.
func New(socketPath string, timeout time.Duration, lg *log.KVLogger, bus *eventbus.Bus) *Bridge {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{socketPath: socketPath, timeout: timeout, lg: lg, bus: bus}
}

func (b *Bridge) dial(ctx context.Context) (net.Conn, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}
	d := net.Dialer{Timeout: b.timeout}
	conn, err := d.DialContext(ctx, "unix", b.socketPath)
	if err != nil {
		if b.lg != nil {
			b.lg.Info("agent not available", log.KV("socket", b.socketPath), log.KVErr(err))
		}
		if b.bus != nil {
			b.bus.Emit(eventbus.Event{
				Type:     "agent.unavailable",
				Source:   "agent.bridge",
				Priority: eventbus.PriorityInfo,
				Data:     map[string]interface{}{"socket": b.socketPath, "error": err.Error()},
			})
		}
		return nil, ErrUnavailable
	}
	b.conn = conn
	return conn, nil
}

// Close releases the underlying connection, if any.
func (b *Bridge) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *Bridge) roundTrip(ctx context.Context, env Envelope) (Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	conn, err := b.dial(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	payload, err := EncodeEnvelope(env)
	if err != nil {
		return Envelope{}, err
	}
	if err := WriteFrame(conn, payload); err != nil {
		b.invalidate()
		return Envelope{}, err
	}
	frame, err := ReadFrame(conn)
	if err != nil {
		b.invalidate()
		return Envelope{}, err
	}
	if frame.Version != ProtocolVersion {
		b.invalidate()
		return Envelope{}, ErrUnsupportedVersion
	}
	return DecodeEnvelope(frame.Payload)
}

func (b *Bridge) invalidate() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// PublishEvent relays an eventbus.Event to the agent. Errors are swallowed
// into ErrUnavailable-equivalent best-effort semantics: a publish failure
// never propagates into the pipeline's own error accumulation, it is only
// logged.
func (b *Bridge) PublishEvent(ctx context.Context, ev eventbus.Event) {
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      TypeEvent,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Event: &EventBody{
			EventType: ev.Type,
			Source:    ev.Source,
			Priority:  priorityName(ev.Priority),
			Data:      ev.Data,
		},
	}
	if _, err := b.roundTrip(ctx, env); err != nil && b.lg != nil {
		b.lg.Info("failed to publish event to agent", log.KVErr(err))
	}
}

// Command issues one of the fixed agent commands and waits for a Response,
// bounded by the Bridge's configured timeout. On any socket error the
// caller should treat the agent as unavailable and fall back to internal
// validation.
func (b *Bridge) Command(ctx context.Context, cmd Command, params map[string]interface{}) (ResponseBody, error) {
	reqID := uuid.NewString()
	env := Envelope{
		ID:        reqID,
		Type:      TypeCommand,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   &CommandBody{Command: cmd, Params: params},
	}
	resp, err := b.roundTrip(ctx, env)
	if err != nil {
		return ResponseBody{}, err
	}
	if resp.Response == nil {
		return ResponseBody{}, errors.New("agent: response envelope missing response body")
	}
	return *resp.Response, nil
}

// Ping is a convenience wrapper around Command(ctx, CmdPing, nil).
func (b *Bridge) Ping(ctx context.Context) error {
	resp, err := b.Command(ctx, CmdPing, nil)
	if err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return errors.New("agent: ping failed")
	}
	return nil
}

// Heartbeat sends one heartbeat frame and does not wait for a response; the
// supervisor side is expected to be a fire-and-forget listener for these.
func (b *Bridge) Heartbeat(ctx context.Context, agentID, status, version string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      TypeHeartbeat,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Heartbeat: &HeartbeatBody{AgentID: agentID, Status: status, Version: version},
	}
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := WriteFrame(conn, payload); err != nil {
		b.invalidate()
		return err
	}
	return nil
}

// RunHeartbeatLoop sends periodic heartbeats until ctx is canceled. Failures
// are logged and do not stop the loop; a future heartbeat may succeed once
// the supervisor comes back.
func (b *Bridge) RunHeartbeatLoop(ctx context.Context, agentID, version string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Heartbeat(ctx, agentID, "running", version); err != nil && b.lg != nil {
				b.lg.Info("heartbeat failed", log.KVErr(err))
			}
		}
	}
}

func priorityName(p eventbus.Priority) string {
	switch p {
	case eventbus.PriorityDebug:
		return "debug"
	case eventbus.PriorityInfo:
		return "info"
	case eventbus.PriorityHigh:
		return "high"
	case eventbus.PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}
