package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/logger"
	coremqtt "github.com/kilianp07/lampfleet/core/mqtt"
	"github.com/kilianp07/lampfleet/internal/eventbus"
)

// CommandFunc applies a raw command payload received from the broker.
type CommandFunc func(payload []byte) error

// Bridge mirrors fleet snapshots to the broker and feeds inbound commands
// back to the engine.
type Bridge struct {
	client coremqtt.Client
	prefix string
	apply  CommandFunc
	log    logger.Logger
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(client coremqtt.Client, prefix string, apply CommandFunc, log logger.Logger) *Bridge {
	return &Bridge{client: client, prefix: prefix, apply: apply, log: log}
}

// SnapshotTopic is the retained topic carrying the latest snapshot.
func (b *Bridge) SnapshotTopic() string { return b.prefix + "/snapshot" }

// CommandTopic is the topic commands are consumed from.
func (b *Bridge) CommandTopic() string { return b.prefix + "/commands" }

// ErrorTopic receives the error text of rejected commands.
func (b *Bridge) ErrorTopic() string { return b.prefix + "/errors" }

// Run subscribes to the command topic and publishes every snapshot from bus
// until ctx is canceled or the bus closes.
func (b *Bridge) Run(ctx context.Context, bus *eventbus.TypedBus[fleet.Snapshot]) error {
	if err := b.client.Subscribe(b.CommandTopic(), b.onCommand); err != nil {
		return err
	}
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			b.publishSnapshot(snap)
		}
	}
}

func (b *Bridge) publishSnapshot(snap fleet.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.log.Errorf("encode snapshot: %v", err)
		return
	}
	if err := b.client.Publish(b.SnapshotTopic(), true, payload); err != nil {
		b.log.Warnf("publish snapshot: %v", err)
	}
}

func (b *Bridge) onCommand(_ string, payload []byte) {
	if b.apply == nil {
		return
	}
	err := b.apply(payload)
	if err == nil {
		return
	}
	b.log.Warnf("mqtt command rejected: %v", err)
	msg, _ := json.Marshal(map[string]string{"error": err.Error()})
	if perr := b.client.Publish(b.ErrorTopic(), false, msg); perr != nil {
		b.log.Warnf("publish command error: %v", perr)
	}
}
