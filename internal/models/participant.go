package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ValidationCodeLength is the number of hex characters in a raw validation code.
const ValidationCodeLength = 9

// Certificate carries the per-participant assets and free text.
type Certificate struct {
	Background string `json:"background"`
	Logo       string `json:"logo"`
	Details    string `json:"details"`
}

// GeoPoint is the optional check-in location.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event describes the order a participant checked in for.
type Event struct {
	OrderID     int64     `json:"order_id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	OrderDate   time.Time `json:"order_date"`
	CheckinAt   time.Time `json:"time_checkin"`
	Location    *GeoPoint `json:"location,omitempty"`
}

// Participant is one attendee of a batch. ValidationCode is assigned once by
// NewParticipant and must not change afterwards; every derived value below is
// computed without touching the stored fields.
type Participant struct {
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	NationalID     string       `json:"cpf"`
	ValidationCode string       `json:"validation_code"`
	Certificate    *Certificate `json:"certificate,omitempty"`
	Event          *Event       `json:"event,omitempty"`
}

// NewParticipant returns a participant with a freshly generated validation code.
func NewParticipant(first, last, email, phone, nationalID string) (*Participant, error) {
	code, err := NewValidationCode()
	if err != nil {
		return nil, err
	}
	return &Participant{
		FirstName:      first,
		LastName:       last,
		Email:          email,
		Phone:          phone,
		NationalID:     nationalID,
		ValidationCode: code,
	}, nil
}

// NewValidationCode returns ValidationCodeLength random lower-case hex characters.
func NewValidationCode() (string, error) {
	buf := make([]byte, (ValidationCodeLength+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate validation code: %w", err)
	}
	return hex.EncodeToString(buf)[:ValidationCodeLength], nil
}

// DeriveValidationCode returns the validation code of record index in the
// batch batchID. The same batch id and index always give the same code.
func DeriveValidationCode(batchID string, index int) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(batchID+"#"+strconv.Itoa(index)))
	return hex.EncodeToString(id[:])[:ValidationCodeLength]
}

func (p *Participant) String() string {
	return fmt.Sprintf("Participant: %s %s - %s", p.FirstName, p.LastName, p.Email)
}

// CompleteName is the display name printed on the certificate.
func (p *Participant) CompleteName() string {
	return CompleteName(p.FirstName, p.LastName)
}

// FormattedValidationCode is the code as printed: XXX-XXX-XXX.
func (p *Participant) FormattedValidationCode() string {
	return FormatValidationCode(p.ValidationCode)
}

// CertificateFilename derives the CertificateKey. It requires an event.
func (p *Participant) CertificateFilename() (string, error) {
	if p.Event == nil {
		return "", fmt.Errorf("%w: participant %s has no event", ErrValidation, p.Email)
	}
	stem := SanitizeFilename(p.CompleteName()) +
		SanitizeFilename(p.Event.ProductName) + "_" +
		SanitizeFilename(p.FormattedValidationCode())
	if strings.Trim(stem, "_") == "" {
		return "", fmt.Errorf("%w: certificate key is empty", ErrValidation)
	}
	return stem + ".png", nil
}

// Validate checks the fields composition and delivery depend on.
func (p *Participant) Validate() error {
	var problems []string
	if strings.TrimSpace(p.FirstName) == "" {
		problems = append(problems, "first_name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		problems = append(problems, "last_name is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		problems = append(problems, "email is invalid")
	}
	if len(strings.ReplaceAll(p.ValidationCode, "-", "")) != ValidationCodeLength {
		problems = append(problems, "validation_code must have 9 characters")
	}
	if p.Certificate == nil || strings.TrimSpace(p.Certificate.Background) == "" {
		problems = append(problems, "certificate background is required")
	}
	if p.Event == nil || strings.TrimSpace(p.Event.ProductName) == "" {
		problems = append(problems, "event product_name is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// CompleteName lower-cases and joins both name fields. Names longer than three
// words keep the first, second and last words. Each word is title-cased.
func CompleteName(first, last string) string {
	tokens := strings.Fields(strings.ToLower(first) + " " + strings.ToLower(last))
	if len(tokens) > 3 {
		tokens = []string{tokens[0], tokens[1], tokens[len(tokens)-1]}
	}
	// cases.Caser is stateful; never share one across goroutines.
	return cases.Title(language.Und).String(strings.Join(tokens, " "))
}

// FormatValidationCode upper-cases code and groups it as XXX-XXX-XXX. It is
// idempotent: formatted input comes back unchanged. Codes of the wrong length
// are only upper-cased.
func FormatValidationCode(code string) string {
	raw := strings.ToUpper(strings.ReplaceAll(code, "-", ""))
	if len(raw) != ValidationCodeLength {
		return strings.ToUpper(code)
	}
	return raw[0:3] + "-" + raw[3:6] + "-" + raw[6:9]
}
