package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "flickshare/internal/errors"
)

type TransferDirection int

const (
	SENDING TransferDirection = iota
	RECEIVING
)

func (d TransferDirection) String() string {
	if d == SENDING {
		return "send"
	}
	return "receive"
}

// Session is the live record of one transfer. Port is the local port the
// session holds for its whole lifetime.
type Session struct {
	ID               string
	Direction        TransferDirection
	Port             int
	Peer             string
	BytesTransferred int64
	StartTime        time.Time
	LastUpdateTime   time.Time

	mu    sync.Mutex
	speed float64
	seq   uint64
}

func (s *Session) SetPeer(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Peer = peer
}

func (s *Session) CurrentPeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Peer
}

// Update records the cumulative byte count and recomputes the speed since
// the previous update.
func (s *Session) Update(bytestransferred int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	timediff := now.Sub(s.LastUpdateTime).Seconds()
	if timediff > 0 {
		s.speed = float64(bytestransferred-s.BytesTransferred) / timediff
	}
	s.LastUpdateTime = now
	s.BytesTransferred = bytestransferred
}

// Speed is the most recent transfer rate in bytes per second.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

func (s *Session) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BytesTransferred
}

// AverageSpeed is bytes per second over the whole session.
func (s *Session) AverageSpeed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.BytesTransferred) / elapsed
}

// Sessions tracks the transfers running in this process and the local ports
// they hold. Only one session may hold a given port.
type Sessions struct {
	sessions map[string]*Session
	ports    map[int]string
	nextseq  uint64
	mu       sync.Mutex
}

var (
	manager   *Sessions
	singleton sync.Once
)

func GetSessions() *Sessions {
	singleton.Do(func() {
		manager = NewSessions()
	})
	return manager
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		ports:    make(map[int]string),
	}
}

// Open reserves port for a new session. It fails with an ErrBusy AppError
// when another live session already holds the port.
func (sm *Sessions) Open(direction TransferDirection, port int, peer string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if owner, exists := sm.ports[port]; exists {
		return nil, apperrors.New(apperrors.ErrBusy, "reserve", fmt.Sprintf("port %d", port),
			fmt.Errorf("already held by %s session %s", sm.sessions[owner].Direction, owner))
	}

	now := time.Now()
	sm.nextseq++
	session := &Session{
		seq:            sm.nextseq,
		ID:             uuid.New().String(),
		Direction:      direction,
		Port:           port,
		Peer:           peer,
		StartTime:      now,
		LastUpdateTime: now,
	}
	sm.sessions[session.ID] = session
	sm.ports[port] = session.ID
	return session, nil
}

// Close releases the session's port. Closing an unknown id is an error.
func (sm *Sessions) Close(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, exists := sm.sessions[id]
	if !exists {
		return fmt.Errorf("session %s not found", id)
	}
	delete(sm.ports, session.Port)
	delete(sm.sessions, id)
	return nil
}

func (sm *Sessions) Get(id string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, exists := sm.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return session, nil
}

// Active returns the live sessions in the order they were opened.
func (sm *Sessions) Active() []*Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}
