package services

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// sendTimeout bounds the outbound API call so a dispatch can never hang a
// request handler indefinitely.
const sendTimeout = 15 * time.Second

// MessageSender is the outbound transport boundary. The engine only needs
// "send text to the operator, get back a provider message id".
type MessageSender interface {
	SendWhatsAppMessage(to, body string) (string, error)
	OperatorNumber() string
}

// TwilioService sends WhatsApp messages through the Twilio API.
type TwilioService struct {
	client   *twilio.RestClient
	from     string
	operator string
}

// NewTwilioService creates a Twilio-backed sender from environment config.
func NewTwilioService() (*TwilioService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_WHATSAPP_FROM") // Format: "whatsapp:+14155238886"
	operator := os.Getenv("OPERATOR_WHATSAPP_TO")

	if accountSid == "" || authToken == "" || from == "" || operator == "" {
		return nil, errors.New("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	client.SetTimeout(sendTimeout)

	return &TwilioService{
		client:   client,
		from:     from,
		operator: operator,
	}, nil
}

// SendWhatsAppMessage sends a WhatsApp message and returns the provider SID.
func (t *TwilioService) SendWhatsAppMessage(to string, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(fmt.Sprintf("whatsapp:%s", to))
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", errors.Wrap(err, "twilio create message")
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		return "", errors.Errorf("twilio error %d: %s", *resp.ErrorCode, *resp.ErrorMessage)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio response missing message sid")
	}

	log.Debug().Str("sid", *resp.Sid).Str("to", to).Msg("whatsapp message sent")
	return *resp.Sid, nil
}

// OperatorNumber returns the operator's WhatsApp number, the destination of
// every outbound dispatch (single-operator deployment).
func (t *TwilioService) OperatorNumber() string {
	return t.operator
}
