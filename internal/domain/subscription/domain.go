package subscription

import "time"

// Channel is a distinct push delivery mechanism.
type Channel string

const (
	ChannelWebPush Channel = "webpush"
	ChannelMobile  Channel = "mobile"
)

// Keys is the encryption material of a browser push subscription.
// Empty for the mobile channel.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription binds one delivery endpoint to one recipient.
// Endpoint is the provider URL for webpush and the push token for mobile;
// (channel, endpoint) is the natural key.
type Subscription struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Channel     Channel   `json:"channel"`
	Endpoint    string    `json:"endpoint"`
	Keys        Keys      `json:"keys"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
