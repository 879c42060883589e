package discovery

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTXT(t *testing.T) {
	txt := EncodeTXT("holiday.jpg", 1000000)
	assert.Equal(t, []string{"Filename=holiday.jpg", "Filesize=1000000"}, txt)

	name, size := DecodeTXT(txt, time.Now())
	assert.Equal(t, "holiday.jpg", name)
	assert.Equal(t, int64(1000000), size)
}

func TestDecodeTXT(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		name     string
		txt      []string
		wantName string
		wantSize int64
	}{
		{"missing name", []string{"Filesize=10"}, "file_1700000000123", 10},
		{"empty name", []string{"Filename=", "Filesize=10"}, "file_1700000000123", 10},
		{"no records", nil, "file_1700000000123", -1},
		{"bad size", []string{"Filename=a.txt", "Filesize=lots"}, "a.txt", -1},
		{"negative size", []string{"Filename=a.txt", "Filesize=-4"}, "a.txt", -1},
		{"traversal", []string{"Filename=../../etc/passwd"}, "passwd", -1},
		{"windows path", []string{`Filename=C:\Users\me\report.pdf`}, "report.pdf", -1},
		{"value with equals", []string{"Filename=a=b.txt"}, "a=b.txt", -1},
		{"junk record", []string{"txtv=0", "garbage", "Filename=x.bin"}, "x.bin", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, size := DecodeTXT(tt.txt, now)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestPeerFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("FlickShare_pixel", ServiceType, Domain)
	entry.Port = 42424
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	entry.Text = EncodeTXT("clip.mp4", 2048)

	peer, ok := PeerFromEntry(entry)
	require.True(t, ok)
	assert.Equal(t, "FlickShare_pixel", peer.Instance)
	assert.Equal(t, "192.168.1.20", peer.Host)
	assert.Equal(t, "192.168.1.20:42424", peer.Addr())
	assert.Equal(t, "clip.mp4", peer.FileName)
	assert.Equal(t, int64(2048), peer.FileSize)
}

func TestPeerFromEntryIPv6Only(t *testing.T) {
	entry := zeroconf.NewServiceEntry("FlickShare_laptop", ServiceType, Domain)
	entry.Port = 5000
	entry.AddrIPv6 = []net.IP{net.ParseIP("fd00::7")}

	peer, ok := PeerFromEntry(entry)
	require.True(t, ok)
	assert.Equal(t, "[fd00::7]:5000", peer.Addr())
	assert.True(t, strings.HasPrefix(peer.FileName, "file_"))
}

func TestPeerFromEntryUnusable(t *testing.T) {
	_, ok := PeerFromEntry(nil)
	assert.False(t, ok)

	noAddr := zeroconf.NewServiceEntry("FlickShare_x", ServiceType, Domain)
	noAddr.Port = 42424
	_, ok = PeerFromEntry(noAddr)
	assert.False(t, ok)

	noPort := zeroconf.NewServiceEntry("FlickShare_x", ServiceType, Domain)
	noPort.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.2")}
	_, ok = PeerFromEntry(noPort)
	assert.False(t, ok)
}

func TestDefaultInstance(t *testing.T) {
	assert.True(t, strings.HasPrefix(DefaultInstance(), InstancePrefix))
	assert.Greater(t, len(DefaultInstance()), len(InstancePrefix))
}

func TestFirstPeerSkipsUnusableEntries(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	noAddr := zeroconf.NewServiceEntry("FlickShare_tablet", ServiceType, Domain)
	noAddr.Port = 42424
	usable := zeroconf.NewServiceEntry("FlickShare_pixel", ServiceType, Domain)
	usable.Port = 42424
	usable.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	usable.Text = EncodeTXT("clip.mp4", 2048)

	entries := make(chan *zeroconf.ServiceEntry, 3)
	entries <- nil
	entries <- noAddr
	entries <- usable

	peer, err := firstPeer(context.Background(), entries, logger)
	require.NoError(t, err)
	assert.Equal(t, "FlickShare_pixel", peer.Instance)
	assert.Equal(t, "192.168.1.20:42424", peer.Addr())
	assert.Equal(t, "clip.mp4", peer.FileName)

	var skipped int
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Skipping entry without address" {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
	assert.Equal(t, "Found sender", hook.LastEntry().Message)
}

func TestFirstPeerClosedChannel(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	entries := make(chan *zeroconf.ServiceEntry, 1)
	entries <- zeroconf.NewServiceEntry("FlickShare_x", ServiceType, Domain)
	close(entries)

	peer, err := firstPeer(context.Background(), entries, logger)
	assert.Nil(t, peer)
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestFirstPeerDeadline(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	peer, err := firstPeer(ctx, make(chan *zeroconf.ServiceEntry), logger)
	assert.Nil(t, peer)
	assert.ErrorIs(t, err, ErrNoPeer)
	assert.Less(t, time.Since(start), 2*time.Second)
}
