package session

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/buffer"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/metrics"
)

// idCharset is the alphabet session ids are drawn from.
const idCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

// idLength is the fixed length of a generated session id.
const idLength = 32

// ErrNoSlots is returned by Allocate when every slot is within its
// timeout window. The HTTP layer maps it to a 503.
var ErrNoSlots = errors.New("no session slots available")

// Config bundles the fields needed to stand up a Store.
type Config struct {
	MaxSessions int
	Timeout     time.Duration
	Host        string
	Port        int
	TempDir     string
	SaveInstanceID int
	UseAIO      bool
	Client      backend.Client
}

// Store is the fixed-size array of session slots plus the global lock
// that serializes allocation and reaping.
type Store struct {
	mu    sync.Mutex // global lock: allocation + reaping only
	cfg   Config
	slots []*Slot
	bufs  *buffer.Manager
}

// NewStore builds a Store with cfg.MaxSessions slots, all initially
// AVAILABLE.
func NewStore(cfg Config, bufs *buffer.Manager) *Store {
	st := &Store{cfg: cfg, bufs: bufs}
	st.slots = make([]*Slot, cfg.MaxSessions)
	now := time.Now()
	for i := range st.slots {
		st.slots[i] = &Slot{
			index:       i,
			available:   true,
			id:          idAvailable,
			compression: -1,
			created:     now,
			lastTouched: now,
		}
	}
	return st
}

// Allocate finds an AVAILABLE slot, or reaps an orphaned one,
// opens two backend connections and three buffers, and returns the
// ready-to-use slot. Returns ErrNoSlots if nothing is available or
// reapable.
func (st *Store) Allocate(ctx context.Context, user, password string) (*Slot, error) {
	st.mu.Lock()
	slot := st.pickSlotLocked()
	st.mu.Unlock()

	if slot == nil {
		return nil, ErrNoSlots
	}

	if err := st.initSlot(ctx, slot, user, password); err != nil {
		st.unreserve(slot)
		return nil, err
	}
	metrics.SessionsInUse.Inc()
	return slot, nil
}

// pickSlotLocked scans for an AVAILABLE slot first, then for the
// first UNAVAILABLE-but-idle-past-timeout orphan in slot order, and
// reserves whichever it picks by flipping it unavailable (and pushing
// its lastTouched into the future, so it cannot be reaped while
// initSlot runs) before returning.
// Must be called with st.mu held, and the reservation must happen
// before st.mu is released — otherwise a second concurrent Allocate
// could scan and pick the same slot before the first one finishes
// initializing it. Never picks a slot whose lastTouched has been
// pushed into the future by an in-flight operation.
func (st *Store) pickSlotLocked() *Slot {
	now := time.Now()
	for _, s := range st.slots {
		s.Lock()
		if s.available {
			s.available = false
			s.TouchBusy(now)
			s.Unlock()
			return s
		}
		s.Unlock()
	}
	for _, s := range st.slots {
		s.Lock()
		orphan := !s.available && s.Idle(now, st.cfg.Timeout)
		s.Unlock()
		if orphan {
			metrics.SessionsReaped.Inc()
			metrics.SessionsInUse.Dec()
			st.cleanupSlot(s)
			s.Lock()
			s.available = false
			s.TouchBusy(now)
			s.Unlock()
			return s
		}
	}
	return nil
}

// unreserve undoes pickSlotLocked's reservation when initSlot fails
// partway through, returning the slot to the available pool.
func (st *Store) unreserve(slot *Slot) {
	slot.Lock()
	slot.available = true
	slot.Unlock()
}

// initSlot fills in a slot already reserved by pickSlotLocked:
// generates an id, opens buffers, opens two backend connections. On
// any failure it cleans up whatever it opened and returns an error;
// the caller is responsible for releasing the reservation.
func (st *Store) initSlot(ctx context.Context, slot *Slot, user, password string) error {
	id := st.generateUniqueID()

	bufs, err := st.bufs.Create(id)
	if err != nil {
		return err
	}

	conn0, err := st.cfg.Client.Connect(ctx, st.cfg.Host, st.cfg.Port, user, password)
	if err != nil {
		st.bufs.Cleanup(bufs)
		return err
	}
	conn1, err := st.cfg.Client.Connect(ctx, st.cfg.Host, st.cfg.Port, user, password)
	if err != nil {
		_ = conn0.Disconnect(ctx)
		st.bufs.Cleanup(bufs)
		return err
	}

	now := time.Now()
	slot.Lock()
	slot.available = false
	slot.id = id
	slot.qid = backend.QueryID{}
	slot.conns[0] = conn0
	slot.conns[1] = conn1
	slot.inputPath = bufs.InputPath
	slot.outputPath = bufs.OutputPath
	slot.pipePath = bufs.PipePath
	slot.outFD = nil
	slot.lineReader = nil
	slot.saveMode = SaveNone
	slot.stream = false
	slot.compression = -1
	slot.created = now
	slot.lastTouched = now
	slot.Unlock()

	return nil
}

// Lookup performs a linear scan (the pool is small) and returns the
// slot only if it is UNAVAILABLE and its id matches.
func (st *Store) Lookup(id string) *Slot {
	for _, s := range st.slots {
		s.Lock()
		match := !s.available && s.id == id
		s.Unlock()
		if match {
			return s
		}
	}
	return nil
}

// Release disconnects both backend handles, runs cleanup under the
// slot lock, and marks the slot AVAILABLE again.
func (st *Store) Release(ctx context.Context, slot *Slot) {
	slot.Lock()
	conns := slot.conns
	slot.Unlock()

	for _, c := range conns {
		if c != nil {
			if err := c.Disconnect(ctx); err != nil {
				logging.Warnf("disconnect during release: %v", err)
			}
		}
	}

	st.cleanupSlot(slot)
	metrics.SessionsInUse.Dec()
}

// cleanupSlot closes the output fd, disconnects both backend
// connections best-effort (errors are ignored), resets the slot to
// AVAILABLE under the slot lock, and then unlinks its temp paths.
func (st *Store) cleanupSlot(slot *Slot) {
	slot.Lock()
	paths := buffer.Paths{
		InputPath:  slot.inputPath,
		OutputPath: slot.outputPath,
		PipePath:   slot.pipePath,
	}
	if slot.outFD != nil {
		_ = slot.outFD.Close()
		slot.outFD = nil
	}
	slot.lineReader = nil
	for _, c := range slot.conns {
		if c != nil {
			_ = c.Disconnect(context.Background())
		}
	}
	slot.conns = [2]backend.Conn{}
	slot.qid = backend.QueryID{}
	slot.saveMode = SaveNone
	slot.available = true
	slot.id = idAvailable
	slot.lastTouched = time.Now()
	slot.Unlock()

	st.bufs.Cleanup(paths)
}

// CleanupAll performs a best-effort, lock-free sweep of every slot's
// temp paths. Called only from the termination signal handler, which
// deliberately forgoes locking because the process is about to exit
// and honouring a hung backend call's lock could deadlock shutdown.
func (st *Store) CleanupAll() {
	for _, s := range st.slots {
		if s.available {
			continue
		}
		_ = buffer.Unlink(buffer.Paths{
			InputPath:  s.inputPath,
			OutputPath: s.outputPath,
			PipePath:   s.pipePath,
		})
	}
}

// Snapshot returns stats for every slot, used by the /debug endpoint.
func (st *Store) Snapshot() []SlotStats {
	out := make([]SlotStats, 0, len(st.slots))
	for _, s := range st.slots {
		s.Lock()
		out = append(out, s.Stats())
		s.Unlock()
	}
	return out
}

// generateUniqueID draws idLength characters from idCharset until the
// draw does not collide with any UNAVAILABLE slot's id. Safe to call
// without st.mu held: it only ever reads other slots' ids under their
// own per-slot locks.
func (st *Store) generateUniqueID() string {
	for {
		id := randomID()
		if st.Lookup(id) == nil {
			return id
		}
	}
}

func randomID() string {
	buf := make([]byte, idLength)
	max := big.NewInt(int64(len(idCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unrecoverable; id
			// randomness quality isn't security-critical here, but
			// entropy is still required to make progress.
			logging.Panicf("session id generation: %v", err)
		}
		buf[i] = idCharset[n.Int64()]
	}
	return string(buf)
}
