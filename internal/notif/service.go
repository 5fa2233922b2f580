package notif

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"gochat/internal/common"
)

// Registry is the live connection table owned by the transport.
type Registry interface {
	Online(userID string) bool
	Push(userID string, data []byte) error
}

// Manager fans a delivery event out to its observers, in the caller's
// goroutine.
type Manager struct {
	observers map[string]common.Observer
	mu        sync.RWMutex
}

var _ common.Subject = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{
		observers: make(map[string]common.Observer),
	}
}

func (nm *Manager) Subscribe(observer common.Observer) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.observers[observer.Name()] = observer
	log.Printf("Observer %s subscribed", observer.Name())
}

func (nm *Manager) Unsubscribe(observer common.Observer) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.observers, observer.Name())
	log.Printf("Observer %s unsubscribed", observer.Name())
}

func (nm *Manager) Notify(event common.DeliveryEvent) {
	nm.mu.RLock()
	observers := make([]common.Observer, 0, len(nm.observers))
	for _, obs := range nm.observers {
		observers = append(observers, obs)
	}
	nm.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.Update(event); err != nil {
			log.Printf("Observer %s update failed: %v", observer.Name(), err)
		}
	}
}

// DeliveryNotifier pushes newly stored messages to recipients that are
// connected right now. Nothing is queued for offline users and a failed
// push is not retried.
type DeliveryNotifier struct {
	registry Registry
	manager  *Manager
}

func NewDeliveryNotifier(registry Registry, manager *Manager) *DeliveryNotifier {
	if manager == nil {
		manager = NewManager()
	}
	return &DeliveryNotifier{registry: registry, manager: manager}
}

func (d *DeliveryNotifier) Notify(ctx context.Context, recipientID string, payload interface{}) {
	event := common.DeliveryEvent{
		Type:        common.MessageCreatedType,
		RecipientID: recipientID,
	}
	event.Outcome, event.Err = d.deliver(recipientID, payload)
	d.manager.Notify(event)
}

func (d *DeliveryNotifier) deliver(recipientID string, payload interface{}) (common.DeliveryOutcome, error) {
	if d.registry == nil || !d.registry.Online(recipientID) {
		return common.OutcomeOffline, nil
	}

	frame, err := json.Marshal(common.Envelope{Type: common.MessageCreatedType, Data: payload})
	if err != nil {
		return common.OutcomeFailed, fmt.Errorf("encode envelope: %w", err)
	}

	// the recipient may have disconnected since Online returned
	if err := d.registry.Push(recipientID, frame); err != nil {
		return common.OutcomeFailed, err
	}
	return common.OutcomePushed, nil
}
