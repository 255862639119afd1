package mail

import "context"

type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender entrega correo transaccional (códigos de verificación, recuperación).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
