package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/accesslab/keybridge/internal/keybridge/types"
)

// ErrNoTransport means no transport could deliver the command; the
// caller is informed rather than the command being queued or dropped.
var ErrNoTransport = errors.New("no transport available for controller command")

// CommandTransport is one way of reaching a hardware controller.
type CommandTransport interface {
	Name() string
	SendCommand(ctx context.Context, cmd types.ControllerCommand) error
}

// CommandGateway tries an ordered list of transports until one delivers:
// the direct websocket channel when the controller is connected, the
// per-device broker topic otherwise.
type CommandGateway struct {
	transports []CommandTransport
	logger     *log.Logger
}

func NewCommandGateway(logger *log.Logger, transports ...CommandTransport) *CommandGateway {
	return &CommandGateway{transports: transports, logger: logger}
}

func (g *CommandGateway) Send(ctx context.Context, cmd types.ControllerCommand) error {
	var lastErr error
	for _, t := range g.transports {
		if err := t.SendCommand(ctx, cmd); err != nil {
			g.logger.Printf("gateway: %s transport failed for action %s: %v", t.Name(), cmd.Action, err)
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoTransport, lastErr)
	}
	return ErrNoTransport
}

// TriggerScan asks a controller to perform an ad-hoc card scan.
func (g *CommandGateway) TriggerScan(ctx context.Context, deviceID string) error {
	return g.Send(ctx, types.ControllerCommand{
		Action:   types.ActionScanCard,
		DeviceID: deviceID,
	})
}
