package transfer

import (
	"time"

	"github.com/sirupsen/logrus"

	"flickshare/internal/metrics"
	"flickshare/internal/store"
)

const (
	// DataPort is where a receiver waits for the sender to dial back. It is
	// a per-device singleton: only one receive session can hold it.
	DataPort = 24243

	// RendezvousPort is the default port a sender listens on for the
	// receiver's notification.
	RendezvousPort = 42424

	ChunkSize              = 64 * 1024
	ReceiveReportThreshold = 512 * 1024

	DefaultDialTimeout = 10 * time.Second

	// DefaultIOTimeout bounds how long a single read or write on the data
	// connection may stall.
	DefaultIOTimeout = 30 * time.Second
)

// NotifyPayload is what a receiver writes to the sender's rendezvous port
// to say it is listening on the data port.
var NotifyPayload = []byte("NOTIFY_RECEIVE_READY")

type FileInfo struct {
	Filename string
	Size     int64
}

// Options tunes a session. Zero durations disable the matching timeout;
// other zero fields fall back to the package defaults.
type Options struct {
	DataPort               int
	ChunkSize              int
	ReceiveReportThreshold int64
	NotifyPayload          []byte

	DialTimeout   time.Duration
	AcceptTimeout time.Duration
	IOTimeout     time.Duration

	Logger   *logrus.Logger
	Metrics  *metrics.Collector
	Sessions *store.Sessions
}

func DefaultOptions() Options {
	return Options{
		DataPort:               DataPort,
		ChunkSize:              ChunkSize,
		ReceiveReportThreshold: ReceiveReportThreshold,
		NotifyPayload:          NotifyPayload,
		DialTimeout:            DefaultDialTimeout,
		IOTimeout:              DefaultIOTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.DataPort == 0 {
		o.DataPort = DataPort
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = ChunkSize
	}
	if o.ReceiveReportThreshold <= 0 {
		o.ReceiveReportThreshold = ReceiveReportThreshold
	}
	if len(o.NotifyPayload) == 0 {
		o.NotifyPayload = NotifyPayload
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Sessions == nil {
		o.Sessions = store.GetSessions()
	}
	return o
}

// Result describes a finished session. It is also returned alongside an
// error when the pump aborted, carrying the bytes moved before the abort.
type Result struct {
	SessionID string
	Direction store.TransferDirection
	Peer      string
	Bytes     int64
	Duration  time.Duration
}
