package host

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/novadaw/novahost/internal/logger"
	"github.com/novadaw/novahost/internal/render"
)

// PushScheduler periodically captures every live editor surface and sends it
// to the owning client as a UI_FRAME message. Surfaces that have not changed
// since the last tick are skipped.
type PushScheduler struct {
	registry *Registry
	sender   Sender
	renderer *render.Renderer
	stats    *Stats
	log      *logger.Logger

	interval time.Duration

	lastHash map[SessionKey]uint64

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPushScheduler builds a scheduler ticking fps times per second. An fps
// outside (0, 120] falls back to 30.
func NewPushScheduler(registry *Registry, sender Sender, renderer *render.Renderer, stats *Stats, fps int) *PushScheduler {
	if fps <= 0 || fps > 120 {
		fps = 30
	}
	return &PushScheduler{
		registry: registry,
		sender:   sender,
		renderer: renderer,
		stats:    stats,
		log:      logger.Global().WithPrefix("push"),
		interval: time.Second / time.Duration(fps),
		lastHash: make(map[SessionKey]uint64),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop on its own goroutine.
func (p *PushScheduler) Start() {
	p.log.Info("pushing UI frames every %v", p.interval)
	go p.run()
}

// Stop halts the loop and waits for the in-flight tick to finish. Stop the
// scheduler before tearing down the transport so no frame is written to a
// closing socket.
func (p *PushScheduler) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		<-p.done
	})
}

func (p *PushScheduler) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick walks a snapshot of the session registry. A session without an editor
// surface, or whose capture fails, is skipped without affecting the rest.
func (p *PushScheduler) tick() {
	entries := p.registry.SnapshotAll()

	seen := make(map[SessionKey]uint64, len(entries))
	for _, entry := range entries {
		prev := p.lastHash[entry.Key]

		image, hash, ok := p.renderer.Capture(entry.Instance, prev)
		if !ok {
			continue
		}
		seen[entry.Key] = hash
		if image == "" {
			continue
		}

		data, err := json.Marshal(uiFrameMessage{
			Action: ActionUIFrame,
			SlotID: entry.Key.SlotID,
			Image:  image,
		})
		if err != nil {
			p.log.Error("failed to encode UI frame for %s/%s: %v", entry.Key.ClientID, entry.Key.SlotID, err)
			continue
		}

		p.sender.Send(entry.Key.ClientID, data)
		p.stats.FramesSent.Add(1)
	}

	// forget hashes of sessions that no longer exist
	p.lastHash = seen
}
