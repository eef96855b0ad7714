package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// CodeSender delivers a verification code to a phone.
type CodeSender interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

// LogSender writes the code to the log instead of dispatching an SMS.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phoneNumber, code string) error {
	s.logger.WithFields(logrus.Fields{
		"phone": phoneNumber,
		"code":  code,
	}).Info("Verification code generated (logged, not sent)")
	return nil
}
