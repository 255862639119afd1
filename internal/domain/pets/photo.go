package pets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxPhotoBytes: 2048 KB.
const MaxPhotoBytes = 2048 * 1024

var (
	ErrPhotoTooLarge   = errors.New("photo must not be greater than 2048 kilobytes")
	ErrPhotoType       = errors.New("photo must be a file of type: jpeg, png, jpg, gif, svg")
	ErrPhotoNotEnabled = errors.New("photo storage not configured")
)

var photoExt = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

// PhotoUpload es el archivo recibido; ContentType es el declarado por el cliente.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// SetPhoto valida y guarda la foto de una mascota activa y borra la anterior.
func (s *Service) SetPhoto(ctx context.Context, petID string, up PhotoUpload) (Pet, error) {
	if s.photos == nil {
		return Pet{}, ErrPhotoNotEnabled
	}
	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return Pet{}, err
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, MaxPhotoBytes+1))
	if err != nil {
		return Pet{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return Pet{}, ErrPhotoTooLarge
	}
	contentType, err := sniffPhoto(up.Filename, up.ContentType, data)
	if err != nil {
		return Pet{}, err
	}

	name := fmt.Sprintf("%s-%d%s", p.ID, s.now().UnixNano(), photoExt[contentType])
	ref, err := s.photos.Save(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return Pet{}, fmt.Errorf("save photo: %w", err)
	}

	previous := p.Photo
	p.Photo = ref
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		_ = s.photos.Delete(ctx, ref)
		return Pet{}, err
	}
	s.metrics.IncPhotosUploaded()

	if previous != "" && previous != ref {
		if err := s.photos.Delete(ctx, previous); err != nil {
			s.log.Warn("previous pet photo not removed", map[string]any{
				"pet_id": p.ID,
				"photo":  previous,
				"error":  err,
			})
		}
	}
	return p, nil
}

// sniffPhoto detecta el tipo por contenido; SVG (texto) se acepta por extensión o tipo declarado.
func sniffPhoto(filename, declared string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrPhotoType
	}
	detected := http.DetectContentType(data)
	if _, ok := photoExt[detected]; ok {
		return detected, nil
	}

	isText := strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "text/plain")
	svgHint := strings.EqualFold(filepath.Ext(filename), ".svg") || strings.HasPrefix(strings.ToLower(declared), "image/svg+xml")
	if isText && svgHint && bytes.Contains(bytes.ToLower(data), []byte("<svg")) {
		return "image/svg+xml", nil
	}
	return "", ErrPhotoType
}
