package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Channel selects how Twilio addresses a number.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Sender is the outbound half of a Twilio account.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ClientOpts holds configuration options for the Twilio client.
type ClientOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	Channel    Channel
}

// ClientOption defines a configuration option for the Twilio client.
type ClientOption func(*ClientOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) ClientOption {
	return func(o *ClientOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) ClientOption {
	return func(o *ClientOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending number in E.164 form.
func WithFromNumber(from string) ClientOption {
	return func(o *ClientOpts) { o.From = from }
}

// WithChannel switches between plain SMS and WhatsApp addressing.
func WithChannel(ch Channel) ClientOption {
	return func(o *ClientOpts) { o.Channel = ch }
}

// TwilioClient wraps the Twilio REST API.
type TwilioClient struct {
	client  *twilio.RestClient
	from    string
	channel Channel
}

// NewTwilioClient builds a client, falling back to TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN,
// TWILIO_FROM_NUMBER and TWILIO_CHANNEL for unset options.
func NewTwilioClient(opts ...ClientOption) (*TwilioClient, error) {
	var cfg ClientOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.Channel == "" {
		cfg.Channel = Channel(strings.ToLower(os.Getenv("TWILIO_CHANNEL")))
	}
	if cfg.Channel == "" {
		cfg.Channel = ChannelSMS
	}
	slog.Debug("Twilio client config loaded",
		"accountSIDSet", cfg.AccountSID != "",
		"authTokenSet", cfg.AuthToken != "",
		"fromSet", cfg.From != "",
		"channel", cfg.Channel)

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}
	if cfg.Channel != ChannelSMS && cfg.Channel != ChannelWhatsApp {
		return nil, fmt.Errorf("unknown twilio channel %q", cfg.Channel)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioClient{client: client, from: cfg.From, channel: cfg.Channel}, nil
}

// address renders a bare number the way the configured channel expects it.
func (c *TwilioClient) address(number string) string {
	if !strings.HasPrefix(number, "+") && !strings.Contains(number, ":") {
		number = "+" + number
	}
	if c.channel == ChannelWhatsApp && !strings.HasPrefix(number, "whatsapp:") {
		return "whatsapp:" + number
	}
	return number
}

// SendMessage sends a text message through the Twilio API.
func (c *TwilioClient) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(c.address(to))
	params.SetFrom(c.address(c.from))
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioClient.SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	if resp != nil && resp.Sid != nil {
		slog.Debug("TwilioClient.SendMessage: sent", "to", to, "sid", *resp.Sid)
	}
	return nil
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	// Err, when set, is returned from every SendMessage call.
	Err error
}

// SentMessage is one message captured by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the captured messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
