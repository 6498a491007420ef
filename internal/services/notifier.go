package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pubnub "github.com/pubnub/go/v7"
)

const (
	ChannelInventory = "ticketing.inventory"
	ChannelPurchases = "ticketing.purchases"
	ChannelScans     = "ticketing.scans"
)

// Publisher delivers a message to a realtime channel.
type Publisher interface {
	Publish(channel string, message any) error
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type pubNubPublisher struct {
	client *pubnub.PubNub
}

// NewPublisher returns a PubNub publisher, or nil when no keys are configured.
func NewPublisher(cfg PubNubConfig) Publisher {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "ticket-shop-server"
	}

	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	pnConfig.NonSubscribeRequestTimeout = 5

	return &pubNubPublisher{client: pubnub.NewPubNub(pnConfig)}
}

func (p *pubNubPublisher) Publish(channel string, message any) error {
	_, _, err := p.client.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// Event is the envelope every realtime message uses.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
	At   int64          `json:"at"`
}

// Notifier publishes domain events off the request path. A nil Notifier, or
// one without a publisher, drops them.
type Notifier struct {
	pub Publisher
	wg  sync.WaitGroup
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) publish(ctx context.Context, channel, eventType string, data map[string]any) {
	if n == nil || n.pub == nil || ctx.Err() != nil {
		return
	}
	msg := Event{Type: eventType, Data: data, At: time.Now().Unix()}

	n.wg.Add(1)
	go n.send(channel, msg)
}

func (n *Notifier) send(channel string, msg Event) {
	defer n.wg.Done()

	if err := n.pub.Publish(channel, msg); err != nil {
		slog.Warn("Failed to publish event", "error", err, "channel", channel, "type", msg.Type)
	}
}

// Wait blocks until every event handed to the publisher has been sent.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) InventoryUpdated(ctx context.Context, ticketTypeID string) {
	n.publish(ctx, ChannelInventory, "inventory.updated", map[string]any{
		"ticketTypeId": ticketTypeID,
	})
}

func (n *Notifier) PurchaseCompleted(ctx context.Context, reference string, tickets int) {
	n.publish(ctx, ChannelPurchases, "purchase.completed", map[string]any{
		"reference": reference,
		"tickets":   tickets,
	})
}

func (n *Notifier) TicketScanned(ctx context.Context, res *ScanResult) {
	n.publish(ctx, ChannelScans, "ticket.scanned", map[string]any{
		"ticketNumber": res.TicketNumber,
		"reference":    res.Reference,
		"gate":         res.Gate,
		"remaining":    res.Remaining,
	})
}
