package gateway

import (
	"sync"

	"gatescan/internal/scan"
)

const (
	EventThreatDetected = "threat_detected"
	EventScanCompleted  = "scan_completed"
)

// Event is the completion payload handed to external fan-out (dashboard,
// alerting). The core only produces it; delivery beyond the in-process
// subscribers is someone else's transport.
type Event struct {
	Event        string         `json:"event"`
	Source       string         `json:"source"`
	SourceType   string         `json:"source_type"`
	RiskLevel    scan.RiskLevel `json:"risk_level"`
	Probability  float64        `json:"probability"`
	BytesScanned int64          `json:"bytes_scanned"`
	ScanTimeMS   int64          `json:"scan_time_ms"`
	Timestamp    string         `json:"timestamp"`
}

// Notifier fans events out to in-process subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event. Consumers that
// need a complete history read the threat store instead.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[int]chan Event{}}
}

// Subscribe registers a buffered listener and returns it with a cancel
// function. Cancel is idempotent.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (n *Notifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
