/*
loop.go - The messaging loop

PURPOSE:
  Single cooperative execution context for everything that touches the
  chat transport. Inbound updates and operator actions alike are funneled
  through the sync bridge, so one customer's slow I/O never interleaves
  badly with another's transition and the operator never races the loop.

ERROR POLICY (per-customer isolation):
  - A failed send to one customer is logged and does not stop the loop.
  - Retracting a superseded prompt is best-effort; its failure is swallowed.
  - A degraded-durability snapshot failure is logged as a warning; the
    dialogue continues from memory.

SEE ALSO:
  - transport.go: The platform boundary
  - bridge: Execution-context marshalling
  - sale/machine.go: Produces the outcomes this loop acts on
*/
package chat

import (
	"context"
	"errors"
	"log"

	"github.com/vendbot/sale-engine/bridge"
	"github.com/vendbot/sale-engine/sale"
)

// Loop drives the purchase dialogue over a Transport.
type Loop struct {
	transport Transport
	machine   *sale.Machine
	ledger    *sale.Ledger
	bridge    *bridge.Bridge
	filePath  string
	logger    *log.Logger
}

// NewLoop wires the loop. filePath is the protected deliverable sent on a
// confirmed payment.
func NewLoop(t Transport, m *sale.Machine, l *sale.Ledger, b *bridge.Bridge, filePath string, logger *log.Logger) *Loop {
	return &Loop{transport: t, machine: m, ledger: l, bridge: b, filePath: filePath, logger: logger}
}

// Run pumps inbound updates into the bridge and executes the bridge's run
// loop until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	updates, err := l.transport.Updates(ctx)
	if err != nil {
		return err
	}

	go func() {
		for in := range updates {
			in := in
			err := l.bridge.Submit(ctx, func(ctx context.Context) error {
				return l.handleInbound(ctx, in)
			})
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, bridge.ErrStopped) {
				l.logger.Printf("inbound from %s failed: %v", in.CustomerID, err)
			}
		}
	}()

	return l.bridge.Run(ctx)
}

func (l *Loop) handleInbound(ctx context.Context, in Inbound) error {
	out, err := l.machine.Handle(ctx, in.CustomerID, in.Name, in.Text)
	if err != nil {
		if !errors.Is(err, sale.ErrSnapshotFailed) {
			return err
		}
		l.logger.Printf("WARNING: durability degraded: %v", err)
	}

	if out.RetractMessageID != 0 {
		if derr := l.transport.DeleteMessage(ctx, in.CustomerID, out.RetractMessageID); derr != nil {
			l.logger.Printf("retract prompt for %s: %v", in.CustomerID, derr)
		}
	}
	if out.Reply == "" {
		return nil
	}

	msgID, serr := l.transport.Send(ctx, Outgoing{
		CustomerID:     in.CustomerID,
		Text:           out.Reply,
		Keyboard:       out.Keyboard,
		RemoveKeyboard: out.RemoveKeyboard,
	})
	if serr != nil {
		// Unreachable/blocked recipient: log and keep serving others.
		l.logger.Printf("send to %s: %v", in.CustomerID, serr)
		return nil
	}

	if out.TrackPrompt {
		uerr := l.ledger.Update(ctx, in.CustomerID, func(rec *sale.CustomerRecord) bool {
			rec.LastPromptMessageID = msgID
			return true
		})
		if uerr != nil {
			l.logger.Printf("WARNING: track prompt for %s: %v", in.CustomerID, uerr)
		}
	}
	return nil
}

// =============================================================================
// OPERATOR-FACING ACTIONS - Marshalled onto the loop via the bridge
// =============================================================================

// SendText delivers an operator message to one customer.
func (l *Loop) SendText(ctx context.Context, id sale.CustomerID, text string) error {
	return l.bridge.Submit(ctx, func(ctx context.Context) error {
		_, err := l.transport.Send(ctx, Outgoing{CustomerID: id, Text: text})
		return err
	})
}

// DeliverFile sends the protected file and then the post-delivery notice
// with the reply keyboard removed. Called after a confirmed payment; runs
// outside the ledger's critical section.
func (l *Loop) DeliverFile(ctx context.Context, id sale.CustomerID, notice string) error {
	return l.bridge.Submit(ctx, func(ctx context.Context) error {
		if err := l.transport.SendDocument(ctx, id, l.filePath); err != nil {
			return err
		}
		_, err := l.transport.Send(ctx, Outgoing{CustomerID: id, Text: notice, RemoveKeyboard: true})
		return err
	})
}
