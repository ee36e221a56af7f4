package mqttbridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

// handleMessage routes one inbound broker message by topic prefix.
// Malformed payloads are logged and dropped; nothing a controller sends
// may take the router down.
func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	switch {
	case topic == TopicKeyCardAdd || topic == TopicScan:
		b.handleScan(payload)
	case topic == TopicStatus:
		b.handleStatus(payload)
	case topic == TopicEnrolled:
		b.handleEnrolled(payload)
	case topic == TopicReadersList:
		b.handleReadersList(payload)
	case topic == TopicReadersChanged:
		b.handleReadersChanged(payload)
	default:
		b.logger.Printf("mqtt: unhandled topic %s", topic)
	}
}

// HandleControllerEvent receives upstream telemetry from controllers
// connected over the websocket channel, so both transports feed the
// same routing.
func (b *Bridge) HandleControllerEvent(event string, data json.RawMessage) {
	switch event {
	case "card_scanned":
		b.handleScan(data)
	case "status_update":
		b.handleStatus(data)
	default:
		b.logger.Printf("fanout: unhandled controller event %s", event)
	}
}

func (b *Bridge) handleScan(payload []byte) {
	var scan types.CardScanMessage
	if err := json.Unmarshal(payload, &scan); err != nil {
		b.logger.Printf("mqtt: malformed scan payload, dropping: %v", err)
		return
	}
	if scan.UID == "" || scan.DeviceID == "" {
		b.logger.Printf("mqtt: scan missing uid or deviceId, dropping")
		return
	}

	b.fanout.Broadcast(rtfanout.NamespaceEvents, "cardScanned", scan)
}

func (b *Bridge) handleStatus(payload []byte) {
	var status types.ControllerStatusMessage
	if err := json.Unmarshal(payload, &status); err != nil {
		b.logger.Printf("mqtt: malformed status payload, dropping: %v", err)
		return
	}
	if status.DeviceID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.readers.SetOnline(ctx, status.DeviceID, true, time.Now().UTC()); err != nil {
		b.logger.Printf("mqtt: marking reader %s online failed: %v", status.DeviceID, err)
	}
}

// handleEnrolled bridges a controller's enrollment completion to the
// persistence API. The save is synchronous and not retried; either
// outcome is broadcast so the operator sees it.
func (b *Bridge) handleEnrolled(payload []byte) {
	var enrolled types.EnrolledMessage
	if err := json.Unmarshal(payload, &enrolled); err != nil {
		b.logger.Printf("mqtt: malformed enrolled payload, dropping: %v", err)
		return
	}
	if enrolled.Reader == "" || enrolled.TagID == "" {
		b.logger.Printf("mqtt: enrolled message missing reader or tagId, dropping")
		return
	}

	b.logger.Printf("mqtt: rfid/enrolled reader=%s tag=%s session=%s hasSecret=%t written=%t",
		enrolled.Reader, enrolled.TagID, enrolled.SessionID, enrolled.NewSecret != "", enrolled.SecretWritten)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := b.saver.SaveTag(ctx, types.SaveTagRequest{
		Reader:        enrolled.Reader,
		TagID:         enrolled.TagID,
		SessionID:     enrolled.SessionID,
		TagSecret:     enrolled.NewSecret,
		SecretWritten: enrolled.SecretWritten,
	})
	if err != nil {
		b.logger.Printf("mqtt: enrollment save failed for tag %s: %v", enrolled.TagID, err)
		b.fanout.Broadcast(rtfanout.NamespaceEvents, "cardEnrolled", types.CardEnrolledEvent{
			Success: false,
			TagID:   enrolled.TagID,
			Reader:  enrolled.Reader,
			Error:   err.Error(),
		})
		return
	}

	b.fanout.Broadcast(rtfanout.NamespaceEvents, "cardEnrolled", types.CardEnrolledEvent{
		Success:       true,
		TagID:         enrolled.TagID,
		Reader:        enrolled.Reader,
		HasSecret:     enrolled.NewSecret != "",
		SecretWritten: enrolled.SecretWritten,
		Message:       "Card enrolled successfully",
	})
}

func (b *Bridge) handleReadersList(payload []byte) {
	var list types.ReadersListMessage
	if err := json.Unmarshal(payload, &list); err != nil {
		b.logger.Printf("mqtt: malformed readers list, dropping: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now().UTC()
	for _, r := range list.Readers {
		if strings.TrimSpace(r.DeviceID) == "" {
			continue
		}
		rec := store.ReaderRecord{
			DeviceID: r.DeviceID,
			Name:     r.Name,
			Location: r.Location,
			Online:   r.Online,
		}
		if r.Online {
			rec.LastSeen = &now
		}
		if err := b.readers.UpsertReader(ctx, rec); err != nil {
			b.logger.Printf("mqtt: upserting reader %s failed: %v", r.DeviceID, err)
		}
	}

	b.logger.Printf("mqtt: readers list update, %d readers", len(list.Readers))
	b.fanout.Broadcast(rtfanout.NamespaceReadersList, "readers_list", list)
}

func (b *Bridge) handleReadersChanged(payload []byte) {
	var batch types.ReaderStatusBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		b.logger.Printf("mqtt: malformed readers status batch, dropping: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now().UTC()
	for _, ch := range batch.Changes {
		if strings.TrimSpace(ch.DeviceID) == "" {
			continue
		}
		if err := b.readers.SetOnline(ctx, ch.DeviceID, ch.Online, now); err != nil {
			b.logger.Printf("mqtt: status change for reader %s failed: %v", ch.DeviceID, err)
		}
	}

	b.logger.Printf("mqtt: readers status change, %d changes", len(batch.Changes))
	b.fanout.Broadcast(rtfanout.NamespaceReadersList, "readers_status_changed", batch)
}
