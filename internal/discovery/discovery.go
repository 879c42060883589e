package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

const (
	ServiceType = "_filetransfer._tcp"
	Domain      = "local."

	InstancePrefix = "FlickShare_"

	txtFilename = "Filename"
	txtFilesize = "Filesize"
)

var ErrNoPeer = errors.New("no sender found on the local network")

// Service is what a sender advertises: the rendezvous port it listens on
// and the file it offers.
type Service struct {
	Instance string
	Port     int
	FileName string
	FileSize int64
}

// Peer is a resolved sender. FileSize is -1 when the sender did not
// advertise one.
type Peer struct {
	Instance string
	Host     string
	Port     int
	FileName string
	FileSize int64
}

func (p *Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

type Announcement struct {
	Service Service

	server *zeroconf.Server
	logger *logrus.Logger
	once   sync.Once
}

func DefaultInstance() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "device"
	}
	return InstancePrefix + hostname
}

// Announce registers svc over mDNS until Shutdown is called or ctx is done.
func Announce(ctx context.Context, svc Service, logger *logrus.Logger) (*Announcement, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if svc.Instance == "" {
		svc.Instance = DefaultInstance()
	}
	server, err := zeroconf.Register(svc.Instance, ServiceType, Domain, svc.Port, EncodeTXT(svc.FileName, svc.FileSize), nil)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", svc.Instance, err)
	}

	a := &Announcement{Service: svc, server: server, logger: logger}
	context.AfterFunc(ctx, a.Shutdown)
	logger.WithFields(logrus.Fields{
		"instance": svc.Instance,
		"port":     svc.Port,
		"file":     svc.FileName,
	}).Info("Announcing file on the local network")
	return a, nil
}

func (a *Announcement) Shutdown() {
	a.once.Do(func() {
		a.server.Shutdown()
		a.logger.WithField("instance", a.Service.Instance).Debug("Announcement withdrawn")
	})
}

// Browse returns the first sender that resolves with a usable address. It
// gives up with ErrNoPeer when ctx expires first.
func Browse(ctx context.Context, logger *logrus.Logger) (*Peer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}
	logger.WithField("service", ServiceType).Info("Looking for senders")
	return firstPeer(ctx, entries, logger)
}

// firstPeer drains entries until one converts into a usable Peer. A closed
// channel or a done ctx yields ErrNoPeer.
func firstPeer(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, logger *logrus.Logger) (*Peer, error) {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, ErrNoPeer
			}
			peer, ok := PeerFromEntry(entry)
			if !ok {
				instance := ""
				if entry != nil {
					instance = entry.Instance
				}
				logger.WithField("instance", instance).Debug("Skipping entry without address")
				continue
			}
			logger.WithFields(logrus.Fields{
				"instance": peer.Instance,
				"peer":     peer.Addr(),
				"file":     peer.FileName,
			}).Info("Found sender")
			return peer, nil
		case <-ctx.Done():
			return nil, ErrNoPeer
		}
	}
}

// PeerFromEntry converts a resolved entry, preferring an IPv4 address.
func PeerFromEntry(entry *zeroconf.ServiceEntry) (*Peer, bool) {
	if entry == nil || entry.Port == 0 {
		return nil, false
	}
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return nil, false
	}
	name, size := DecodeTXT(entry.Text, time.Now())
	return &Peer{
		Instance: entry.Instance,
		Host:     host,
		Port:     entry.Port,
		FileName: name,
		FileSize: size,
	}, true
}

func EncodeTXT(name string, size int64) []string {
	return []string{
		txtFilename + "=" + name,
		txtFilesize + "=" + strconv.FormatInt(size, 10),
	}
}

// DecodeTXT reads the offered file from TXT records. A missing name becomes
// file_<unix millis of now>; path components are stripped so the name is
// safe to join under a download directory.
func DecodeTXT(txt []string, now time.Time) (string, int64) {
	var name string
	var size int64 = -1
	for _, record := range txt {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		switch key {
		case txtFilename:
			name = value
		case txtFilesize:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
				size = n
			}
		}
	}

	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if name == "/" || name == "." || name == "" {
		name = fmt.Sprintf("file_%d", now.UnixMilli())
	}
	return name, size
}
