package dispatch

import (
	"context"
	"fmt"

	"github.com/linkfolio-api/internal/domain"
	"github.com/linkfolio-api/internal/infrastructure/smtp"
	"github.com/linkfolio-api/internal/infrastructure/sns"
)

// Dispatcher delivers a human-readable one-time code to a recipient over a
// contact channel. One implementation per channel sits behind it; an unknown
// channel is an error, never a silent success.
type Dispatcher interface {
	Deliver(ctx context.Context, channel, recipient, code string) error
}

type dispatcher struct {
	mailer     smtp.Mailer
	smsSender  sns.SMSSender
	otpMinutes int
}

// New builds the process-wide dispatcher. Constructed once at startup and
// passed into the auth service; there is no package-level transporter state.
func New(mailer smtp.Mailer, smsSender sns.SMSSender, otpMinutes int) Dispatcher {
	return &dispatcher{mailer: mailer, smsSender: smsSender, otpMinutes: otpMinutes}
}

func (d *dispatcher) Deliver(ctx context.Context, channel, recipient, code string) error {
	switch channel {
	case domain.ChannelEmail:
		if d.mailer == nil {
			return fmt.Errorf("email transport not configured")
		}
		body := fmt.Sprintf("<p>Your verification code is: <b>%s</b>. It expires in %d minutes.</p>", code, d.otpMinutes)
		return d.mailer.SendEmail(recipient, "Your verification code", body)
	case domain.ChannelPhone:
		if d.smsSender == nil {
			return fmt.Errorf("sms gateway not configured")
		}
		return d.smsSender.SendSMS(ctx, recipient, fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, d.otpMinutes))
	default:
		return fmt.Errorf("no dispatcher for channel %q", channel)
	}
}
