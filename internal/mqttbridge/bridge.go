// Package mqttbridge maintains the server's single broker connection,
// routes inbound controller messages to their handlers, and publishes
// outbound commands with at-least-once intent.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/accesslab/keybridge/internal/keybridge/service"
	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

// Topics consumed from controllers.
const (
	TopicKeyCardAdd     = "controller/keyCard/add"
	TopicStatus         = "controller/status"
	TopicScan           = "rfid/scan"
	TopicEnrolled       = "rfid/enrolled"
	TopicReadersList    = "readers/list_update"
	TopicReadersChanged = "readers/status_changed"

	// Topics produced.
	TopicEnrollCommand = "rfid/command"
)

var (
	ErrNotConnected = errors.New("broker not connected")
	ErrNoDeviceID   = errors.New("deviceId is required for broker delivery")
)

type Options struct {
	URL      string
	Username string
	Password string
	ClientID string

	// PublishTimeout bounds how long a qos-1 publish waits for its
	// acknowledgment before reporting "never acknowledged".
	PublishTimeout time.Duration

	// ConnectMaxElapsed bounds the initial connect retry loop.
	ConnectMaxElapsed time.Duration
}

type Dependencies struct {
	Logger  *log.Logger
	Fanout  service.Broadcaster
	Readers store.ReaderStore
	Saver   *SaveClient
}

// Bridge is the message router between the broker and the rest of the
// server. It owns no persistent state of its own.
type Bridge struct {
	client mqtt.Client
	logger *log.Logger

	fanout  service.Broadcaster
	readers store.ReaderStore
	saver   *SaveClient

	publishTimeout time.Duration
	connectMax     time.Duration
}

func New(opts Options, deps Dependencies) *Bridge {
	b := &Bridge{
		logger:         deps.Logger,
		fanout:         deps.Fanout,
		readers:        deps.Readers,
		saver:          deps.Saver,
		publishTimeout: opts.PublishTimeout,
		connectMax:     opts.ConnectMaxElapsed,
	}
	if b.publishTimeout <= 0 {
		b.publishTimeout = 5 * time.Second
	}
	if b.connectMax <= 0 {
		b.connectMax = time.Minute
	}

	clientID := fmt.Sprintf("%s_%d", opts.ClientID, time.Now().Unix())

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.URL).
		SetClientID(clientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetKeepAlive(60 * time.Second).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(mqttOpts)
	return b
}

// Connect establishes the initial broker session, retrying with
// exponential backoff. Reconnects after that are paho's job.
func (b *Bridge) Connect(ctx context.Context) error {
	op := func() (struct{}, error) {
		tok := b.client.Connect()
		tok.Wait()
		if err := tok.Error(); err != nil {
			b.logger.Printf("mqtt: connect failed, will retry: %v", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(b.connectMax),
	)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

func (b *Bridge) IsConnected() bool {
	return b.client.IsConnected()
}

// onConnect runs on every (re)connect so subscriptions survive broker
// restarts.
func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Printf("mqtt: connected")

	for _, topic := range []string{
		TopicKeyCardAdd,
		TopicStatus,
		TopicScan,
		TopicEnrolled,
		TopicReadersList,
		TopicReadersChanged,
	} {
		tok := client.Subscribe(topic, 1, b.handleMessage)
		tok.Wait()
		if err := tok.Error(); err != nil {
			b.logger.Printf("mqtt: subscribe %s failed: %v", topic, err)
			continue
		}
		b.logger.Printf("mqtt: subscribed to %s", topic)
	}

	b.fanout.Broadcast(rtfanout.NamespaceEvents, "broker_status", map[string]any{"connected": true})
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	// The paho client reconnects on its own; we only surface the gap.
	b.logger.Printf("mqtt: connection lost: %v", err)
	b.fanout.Broadcast(rtfanout.NamespaceEvents, "broker_status", map[string]any{"connected": false})
}

// publish sends one qos-1 message and waits for the broker's ack. A
// timeout is reported distinctly from a rejected publish.
func (b *Bridge) publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	tok := b.client.Publish(topic, 1, false, data)
	if !tok.WaitTimeout(b.publishTimeout) {
		return fmt.Errorf("publish %s: no ack within %s", topic, b.publishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishEnrollCommand implements service.EnrollPublisher.
func (b *Bridge) PublishEnrollCommand(_ context.Context, cmd types.EnrollCommand) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	b.logger.Printf("mqtt: publishing %s for reader %s (session %s)", cmd.Action, cmd.Reader, cmd.SessionID)
	return b.publish(TopicEnrollCommand, cmd)
}

// SendCommand implements the gateway's broker fallback transport:
// commands go to the controller's own topic.
func (b *Bridge) SendCommand(_ context.Context, cmd types.ControllerCommand) error {
	if cmd.DeviceID == "" {
		return ErrNoDeviceID
	}
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	return b.publish(fmt.Sprintf("controller/%s/command", cmd.DeviceID), cmd)
}

func (b *Bridge) Name() string { return "mqtt" }
