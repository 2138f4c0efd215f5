package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-demo-booking/internal/models"
)

// PayloadVersion is the schema version written into new QR payloads.
// Payloads without a version field are the original unversioned format.
const PayloadVersion = 1

const sealedPrefix = "qr1."

var (
	ErrUnsupportedVersion = errors.New("unsupported QR payload version")
	ErrMalformed          = errors.New("malformed QR payload")
)

// Payload is the structured content of a ticket QR code.
type Payload struct {
	Version  int                 `json:"v"`
	TicketID string              `json:"ticketId"`
	Name     string              `json:"name,omitempty"`
	Email    string              `json:"email,omitempty"`
	Date     time.Time           `json:"date"`
	Status   models.TicketStatus `json:"status,omitempty"`
}

// NewPayload snapshots the ticket, its attendee and its session.
func NewPayload(ticket *models.Ticket, attendee *models.Attendee, session *models.Session) Payload {
	return Payload{
		Version:  PayloadVersion,
		TicketID: ticket.ID,
		Name:     attendee.Name,
		Email:    attendee.Email,
		Date:     session.Date,
		Status:   ticket.Status,
	}
}

// Generator encodes payloads and renders them as QR images. With a secret
// the JSON is sealed with AES-GCM; Decode still accepts plain JSON and ticket
// URLs, so sealing hides attendee details but does not authenticate a scan.
type Generator struct {
	aead cipher.AEAD
}

func NewGenerator(secret string) (*Generator, error) {
	if secret == "" {
		return &Generator{}, nil
	}
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead}, nil
}

// Sealed reports whether payloads are encrypted.
func (g *Generator) Sealed() bool {
	return g.aead != nil
}

func (g *Generator) Encode(p Payload) (string, error) {
	if p.Version == 0 {
		p.Version = PayloadVersion
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if g.aead == nil {
		return string(data), nil
	}

	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode parses scanned text. It accepts plain JSON payloads, sealed
// payloads and ticket links ending in /tickets/<id>.
func (g *Generator) Decode(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, sealedPrefix):
		return g.open(strings.TrimPrefix(raw, sealedPrefix))
	case strings.HasPrefix(raw, "{"):
		return decodeJSON([]byte(raw))
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return decodeURL(raw)
	}
	return Payload{}, ErrMalformed
}

func (g *Generator) open(encoded string) (Payload, error) {
	if g.aead == nil {
		return Payload{}, fmt.Errorf("sealed payload without a key: %w", ErrMalformed)
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("%v: %w", err, ErrMalformed)
	}
	size := g.aead.NonceSize()
	if len(data) < size {
		return Payload{}, ErrMalformed
	}
	plain, err := g.aead.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return Payload{}, fmt.Errorf("%v: %w", err, ErrMalformed)
	}
	return decodeJSON(plain)
}

func decodeJSON(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%v: %w", err, ErrMalformed)
	}
	if p.Version > PayloadVersion {
		return Payload{}, fmt.Errorf("version %d: %w", p.Version, ErrUnsupportedVersion)
	}
	if p.TicketID == "" {
		return Payload{}, fmt.Errorf("missing ticketId: %w", ErrMalformed)
	}
	return p, nil
}

func decodeURL(raw string) (Payload, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("%v: %w", err, ErrMalformed)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] != "tickets" || parts[len(parts)-1] == "" {
		return Payload{}, ErrMalformed
	}
	return Payload{TicketID: parts[len(parts)-1]}, nil
}

// PNG renders content as a 256px QR code.
func PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 256)
}

// DataURL renders content as an inline image for HTML email.
func DataURL(content string) (string, error) {
	png, err := PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// TicketURL is the public link printed on a ticket.
func TicketURL(baseURL, ticketID string) string {
	return strings.TrimRight(baseURL, "/") + "/tickets/" + ticketID
}
