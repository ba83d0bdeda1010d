package dispatch

import "context"

// Transport is the outbound side of the chat platform gateway. The
// dispatcher never talks to the platform directly; everything it emits
// goes through here. Affordance and delete calls are best-effort from
// the dispatcher's point of view: their failures are logged, never
// allowed to abort the primary flow.
type Transport interface {
	// Send delivers text to a channel and returns the platform message id.
	Send(ctx context.Context, channelID int64, text string) (int, error)

	// SendPhoto delivers a local image file as a single attachment.
	SendPhoto(ctx context.Context, channelID int64, path string) (int, error)

	// AddEditAffordances marks a delivered message as reroll/delete-able.
	AddEditAffordances(ctx context.Context, channelID int64, messageID int) error

	// RemoveEditAffordances revokes the markers.
	RemoveEditAffordances(ctx context.Context, channelID int64, messageID int) error

	// DeleteMessage removes a delivered message.
	DeleteMessage(ctx context.Context, channelID int64, messageID int) error
}
