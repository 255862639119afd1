package photos

import (
	"context"
	"io"
)

// Store persiste fotos de mascotas y devuelve la referencia a guardar en Pet.Photo.
type Store interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}
