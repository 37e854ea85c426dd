package users

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/primeauth/internal/logging"
)

// Purpose tells the recipient what a one-time code is for.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// OTPSender delivers one-time codes out of band.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, purpose Purpose) error
}

// LogSender writes codes to the log. It is meant for local development only.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{logger: l.With("module", "otp")}
}

func (s *LogSender) SendOTP(ctx context.Context, email, code string, purpose Purpose) error {
	s.logger.Info(ctx, "one-time code issued", "email", email, "purpose", purpose, "code", code)
	return nil
}

// CaptureSender remembers the last code sent to each address.
type CaptureSender struct {
	mu    sync.Mutex
	codes map[string]string
	Err   error
}

func NewCaptureSender() *CaptureSender {
	return &CaptureSender{codes: make(map[string]string)}
}

func (s *CaptureSender) SendOTP(_ context.Context, email, code string, _ Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.codes[emailKey(email)] = code
	return nil
}

// Last returns the most recent code sent to email.
func (s *CaptureSender) Last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[emailKey(email)]
}
