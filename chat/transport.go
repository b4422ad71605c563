/*
Package chat runs the messaging side of the sale: it pumps inbound chat
updates through the purchase machine and performs the sends, retractions
and file deliveries the transitions ask for.

This file defines the transport boundary. Everything the engine needs from
a chat platform is four operations; the concrete platform (telegram
subpackage, fakes in tests) stays interchangeable glue.
*/
package chat

import (
	"context"

	"github.com/vendbot/sale-engine/sale"
)

// Inbound is one customer message as received from the platform.
type Inbound struct {
	CustomerID sale.CustomerID
	Name       string
	Text       string
}

// Outgoing is one message to a customer. Keyboard and RemoveKeyboard are
// mutually exclusive; both zero means keep the current keyboard.
type Outgoing struct {
	CustomerID     sale.CustomerID
	Text           string
	Keyboard       sale.Keyboard
	RemoveKeyboard bool
}

// Transport is the chat platform boundary.
type Transport interface {
	// Updates starts delivering inbound messages. The channel closes when
	// ctx is canceled.
	Updates(ctx context.Context) (<-chan Inbound, error)

	// Send delivers a message and returns its platform message id.
	Send(ctx context.Context, out Outgoing) (int64, error)

	// SendDocument delivers a local file as a document.
	SendDocument(ctx context.Context, id sale.CustomerID, path string) error

	// DeleteMessage retracts a previously sent message.
	DeleteMessage(ctx context.Context, id sale.CustomerID, messageID int64) error
}
