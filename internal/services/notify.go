package services

import (
	"fmt"
	"log"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers short messages to customers (OTP codes, approval
// decisions). Delivery failures are logged by callers, never fatal.
type Notifier interface {
	SendSMS(to string, message string) error
}

// TwilioNotifier sends SMS via Twilio.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioNotifier creates a notifier from TWILIO_* environment
// variables.
func NewTwilioNotifier() (*TwilioNotifier, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_SMS_FROM")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioNotifier{client: client, from: from}, nil
}

// SendSMS sends an SMS message via Twilio
func (t *TwilioNotifier) SendSMS(to string, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("Failed to send SMS: %v", err)
		return err
	}

	log.Printf("SMS sent, SID: %s", *resp.Sid)
	return nil
}

// LogNotifier writes messages to the log instead of sending them. Used
// when Twilio is not configured and in tests.
type LogNotifier struct{}

func (LogNotifier) SendSMS(to string, message string) error {
	log.Printf("SMS to %s: %s", to, message)
	return nil
}
