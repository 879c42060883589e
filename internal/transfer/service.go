package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "flickshare/internal/errors"
	"flickshare/internal/metrics"
	"flickshare/internal/progress"
	"flickshare/internal/store"
)

// Send runs the listener side of a transfer. It waits on port for the
// receiver's notification, learns the receiver's IP from that connection,
// dials back to the receiver's data port and streams src into it.
//
// src is owned by Send and closed on every return path.
func Send(ctx context.Context, port int, src io.ReadCloser, report progress.Func, opts Options) (*Result, error) {
	defer src.Close()
	opts = opts.withDefaults()

	log := opts.Logger.WithFields(logrus.Fields{
		"role": store.SENDING.String(),
		"port": port,
	})
	start := time.Now()
	opts.Metrics.SessionStarted(store.SENDING.String())
	res := &Result{Direction: store.SENDING}

	session, err := opts.Sessions.Open(store.SENDING, port, "")
	if err != nil {
		finish(opts, res, err, start, log)
		return nil, err
	}
	defer opts.Sessions.Close(session.ID)
	res.SessionID = session.ID
	log = log.WithField("session", session.ID)

	err = send(ctx, port, src, report, opts, session, res, log)
	finish(opts, res, err, start, log)
	return res, err
}

func send(ctx context.Context, port int, src io.Reader, report progress.Func, opts Options, session *store.Session, res *Result, log *logrus.Entry) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return apperrors.New(apperrors.ErrBind, "listen", addr, err)
	}
	defer listener.Close()
	log.Info("Waiting for receiver to connect")

	control, err := accept(ctx, listener, opts.AcceptTimeout)
	if err != nil {
		return err
	}
	remoteIP, _, err := net.SplitHostPort(control.RemoteAddr().String())
	control.Close()
	if err != nil {
		return apperrors.New(apperrors.ErrAccept, "accept", control.RemoteAddr().String(), err)
	}
	// The rendezvous port is done once the peer's address is known.
	listener.Close()

	target := net.JoinHostPort(remoteIP, strconv.Itoa(opts.DataPort))
	res.Peer = target
	session.SetPeer(target)
	log = log.WithField("peer", target)
	log.Info("Receiver notified us, connecting back for data")

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	data, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return cancelled(ctx, apperrors.New(apperrors.ErrConnect, "connect back to", target, err))
	}
	defer data.Close()
	stop := context.AfterFunc(ctx, func() { data.Close() })
	defer stop()

	pump := NewSendPump(opts.ChunkSize, progress.Multi(session.Update, report))
	res.Bytes, err = pump.Run(ctx, &deadlineConn{Conn: data, timeout: opts.IOTimeout}, src)
	if err != nil {
		return cancelled(ctx, err)
	}
	return nil
}

// Receive runs the connector side of a transfer. It listens on the data
// port, notifies the sender at host:port, accepts the sender's data
// connection and streams it into dst.
//
// dst is owned by Receive and closed on every return path; a failed close
// after a clean stream is reported as a write error.
func Receive(ctx context.Context, host string, port int, dst io.WriteCloser, report progress.Func, opts Options) (*Result, error) {
	closed := false
	defer func() {
		if !closed {
			dst.Close()
		}
	}()
	opts = opts.withDefaults()
	remote := net.JoinHostPort(host, strconv.Itoa(port))

	log := opts.Logger.WithFields(logrus.Fields{
		"role": store.RECEIVING.String(),
		"port": opts.DataPort,
		"peer": remote,
	})
	start := time.Now()
	opts.Metrics.SessionStarted(store.RECEIVING.String())
	res := &Result{Direction: store.RECEIVING, Peer: remote}

	session, err := opts.Sessions.Open(store.RECEIVING, opts.DataPort, remote)
	if err != nil {
		finish(opts, res, err, start, log)
		return nil, err
	}
	defer opts.Sessions.Close(session.ID)
	res.SessionID = session.ID
	log = log.WithField("session", session.ID)

	err = receive(ctx, remote, dst, report, opts, session, res, log)
	if err == nil {
		closed = true
		if cerr := dst.Close(); cerr != nil {
			err = apperrors.New(apperrors.ErrWrite, "close", "", cerr)
		}
	}
	finish(opts, res, err, start, log)
	return res, err
}

func receive(ctx context.Context, remote string, dst io.Writer, report progress.Func, opts Options, session *store.Session, res *Result, log *logrus.Entry) error {
	addr := fmt.Sprintf("0.0.0.0:%d", opts.DataPort)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return apperrors.New(apperrors.ErrBind, "local listen", addr, err)
	}
	defer listener.Close()

	if err := notify(ctx, remote, opts); err != nil {
		return cancelled(ctx, err)
	}
	log.Info("Sender notified, waiting for data connection")

	data, err := accept(ctx, listener, opts.AcceptTimeout)
	if err != nil {
		return err
	}
	defer data.Close()
	stop := context.AfterFunc(ctx, func() { data.Close() })
	defer stop()

	log.WithField("data_peer", data.RemoteAddr().String()).Info("Data connection accepted")

	pump := NewReceivePump(opts.ChunkSize, opts.ReceiveReportThreshold, progress.Multi(session.Update, report))
	res.Bytes, err = pump.Run(ctx, dst, &deadlineConn{Conn: data, timeout: opts.IOTimeout})
	if err != nil {
		return cancelled(ctx, err)
	}
	return nil
}

// notify opens the short-lived control connection to the sender and writes
// the ready payload. The connection is closed before returning.
func notify(ctx context.Context, remote string, opts Options) error {
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", remote)
	if err != nil {
		return apperrors.New(apperrors.ErrNotify, "notify", remote, err)
	}
	defer conn.Close()
	if opts.IOTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(opts.IOTimeout))
	}
	// A lost payload is not fatal: the sender only needs the connection.
	_, _ = conn.Write(opts.NotifyPayload)
	return nil
}

// accept waits for exactly one connection. It gives up when ctx is done or
// timeout elapses.
func accept(ctx context.Context, listener net.Listener, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		if tl, ok := listener.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(timeout))
		}
	}
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	conn, err := listener.Accept()
	if err != nil {
		return nil, cancelled(ctx, apperrors.New(apperrors.ErrAccept, "accept", listener.Addr().String(), err))
	}
	return conn, nil
}

// cancelled replaces err with an ErrCancelled AppError when ctx ended,
// since a closed socket is then the symptom and not the cause.
func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.New(apperrors.ErrCancelled, "transfer", "", ctxErr)
	}
	return err
}

func finish(opts Options, res *Result, err error, start time.Time, log *logrus.Entry) {
	res.Duration = time.Since(start)
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrRead), apperrors.Is(err, apperrors.ErrWrite), apperrors.Is(err, apperrors.ErrCancelled):
		outcome = metrics.OutcomeIncomplete
	default:
		outcome = metrics.OutcomeFailed
	}
	opts.Metrics.SessionFinished(res.Direction.String(), outcome, res.Bytes, start)

	fields := logrus.Fields{"bytes": res.Bytes, "duration": res.Duration, "outcome": outcome}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Transfer failed")
		return
	}
	log.WithFields(fields).Info("Transfer finished")
}

// deadlineConn pushes the connection deadline forward before every read
// and write so that only a stalled peer trips the timeout.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Write(p)
}
