package logmail

import (
	"context"
	"sync"

	"pet-clinical-history/internal/platform/logger"
	"pet-clinical-history/internal/ports/mail"
)

// Sender no envía nada: registra el mensaje en el log. Modo dev.
// Guarda el último mensaje por destinatario para que los tests lo lean.
type Sender struct {
	log logger.Logger

	mu   sync.Mutex
	last map[string]mail.Message
}

func NewSender(log logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{log: log, last: map[string]mail.Message{}}
}

func (s *Sender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	s.last[msg.To] = msg
	s.mu.Unlock()

	s.log.Info("mail (dev) not delivered", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}

func (s *Sender) Last(to string) (mail.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.last[to]
	return m, ok
}
