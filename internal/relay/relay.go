package relay

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mernchat/server/internal/data"
	"github.com/mernchat/server/internal/files"
)

// MessageStore persists inbound messages. Satisfied by data.MessagesStore.
type MessageStore interface {
	SaveMessage(ctx context.Context, sender, recipient, text string, file *string) (*data.Message, error)
}

// FileStore saves attachment bytes under a generated name. Satisfied by
// files.Store.
type FileStore interface {
	Save(name string, data []byte) error
}

// inboundMessage is the wire shape of a client message event.
type inboundMessage struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text"`
	File      *inboundFile `json:"file"`
}

// inboundFile carries an attachment as the browser produces it: original
// name plus a base64 data URI.
type inboundFile struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// deliveryPayload is pushed to the recipient's live connection.
type deliveryPayload struct {
	Text      string  `json:"text"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	File      *string `json:"file"`
	ID        string  `json:"id"`
}

// Relay turns inbound message events into durable records and, when the
// recipient is connected, live deliveries.
type Relay struct {
	reg   *Registry
	store MessageStore
	files FileStore
	log   *zap.Logger
}

// NewRelay wires a relay over the registry and its stores.
func NewRelay(reg *Registry, store MessageStore, fileStore FileStore, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{reg: reg, store: store, files: fileStore, log: log}
}

// HandleInbound processes one message event from c. Malformed events and
// events from untagged connections are dropped without surfacing anything to
// the sender; the protocol is best-effort and a bad frame is not worth
// failing the connection over. Valid messages are always persisted, and
// delivered only if the recipient has a live connection right now.
//
// The transport calls HandleInbound sequentially per connection, which is
// what preserves per-sender message ordering.
func (r *Relay) HandleInbound(ctx context.Context, c *Conn, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.log.Debug("dropping undecodable event", zap.Error(err))
		return
	}

	sender, _, tagged := c.Identity()
	if !tagged {
		r.log.Debug("dropping event from untagged connection")
		return
	}

	hasText := msg.Text != ""
	hasFile := msg.File != nil && msg.File.Data != ""
	if msg.Recipient == "" || (!hasText && !hasFile) {
		r.log.Debug("dropping malformed event",
			zap.String("sender", sender),
			zap.Bool("hasText", hasText),
			zap.Bool("hasFile", hasFile))
		return
	}

	var stored *string
	if hasFile {
		content, err := files.DecodeDataURI(msg.File.Data)
		if err != nil {
			r.log.Debug("dropping event with undecodable attachment", zap.Error(err))
			return
		}
		name := files.GeneratedName(msg.File.Name, time.Now())
		// Failure to write the attachment is logged, not propagated; the
		// message record still carries the generated name.
		if err := r.files.Save(name, content); err != nil {
			r.log.Error("attachment save failed", zap.String("file", name), zap.Error(err))
		} else {
			r.log.Info("attachment saved", zap.String("file", name))
		}
		stored = &name
	}

	rec, err := r.store.SaveMessage(ctx, sender, msg.Recipient, msg.Text, stored)
	if err != nil {
		// Never deliver a message that was not recorded.
		r.log.Error("message persist failed",
			zap.String("sender", sender),
			zap.String("recipient", msg.Recipient),
			zap.Error(err))
		return
	}

	target, ok := r.reg.FindByUserID(msg.Recipient)
	if !ok {
		// Offline recipient: not an error, history covers it on next login.
		return
	}

	payload := deliveryPayload{
		Text:      msg.Text,
		Sender:    sender,
		Recipient: msg.Recipient,
		File:      stored,
		ID:        rec.ID.Hex(),
	}
	if err := target.Send(payload); err != nil {
		r.log.Warn("delivery failed", zap.String("recipient", msg.Recipient), zap.Error(err))
	}
}
