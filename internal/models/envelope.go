package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the timestamp format used by the batch producer and the
// acceptance endpoint.
const DateLayout = "2006-01-02 15:04:05"

// BatchEnvelope is the queue payload that triggers one certificate batch.
// Records stay raw so that one malformed row fails alone.
type BatchEnvelope struct {
	BatchID      string            `json:"batch_id,omitempty"`
	Participants []json.RawMessage `json:"participants"`
}

// ParticipantRecord is a raw participant row as produced upstream.
type ParticipantRecord struct {
	FirstName             string    `json:"first_name"`
	LastName              string    `json:"last_name"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	CPF                   string    `json:"cpf"`
	CertificateDetails    string    `json:"certificate_details"`
	CertificateLogo       string    `json:"certificate_logo"`
	CertificateBackground string    `json:"certificate_background"`
	OrderID               FlexInt   `json:"order_id"`
	ProductID             FlexInt   `json:"product_id"`
	ProductName           string    `json:"product_name"`
	OrderDate             string    `json:"order_date"`
	TimeCheckin           string    `json:"time_checkin"`
	CheckinLatitude       FlexFloat `json:"checkin_latitude"`
	CheckinLongitude      FlexFloat `json:"checkin_longitude"`
	// ValidationCode overrides the code derived for the record.
	ValidationCode string `json:"validation_code,omitempty"`
}

// DecodeBatch parses a queue body. The body may be the envelope itself or a
// JSON string that contains it.
func DecodeBatch(body []byte) (*BatchEnvelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBatchInput)
	}
	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBatchInput, err)
		}
		body = []byte(inner)
	}

	var env BatchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchInput, err)
	}
	if len(env.Participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrBatchInput)
	}
	return &env, nil
}

// ParticipantAt decodes record i of the batch. A record without a
// validation_code gets one derived from the batch id and i, so a redelivered
// batch maps to the same certificate keys. Without a batch id the code is
// random.
func (e *BatchEnvelope) ParticipantAt(i int) (*Participant, error) {
	var rec ParticipantRecord
	if err := json.Unmarshal(e.Participants[i], &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if rec.ValidationCode == "" && e.BatchID != "" {
		rec.ValidationCode = DeriveValidationCode(e.BatchID, i)
	}
	return rec.ToParticipant()
}

// ParseParticipant decodes one raw record into a participant.
func ParseParticipant(raw json.RawMessage) (*Participant, error) {
	var rec ParticipantRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return rec.ToParticipant()
}

// ToParticipant converts the record. A new validation code is generated
// unless the record carries one.
func (r ParticipantRecord) ToParticipant() (*Participant, error) {
	p, err := NewParticipant(r.FirstName, r.LastName, r.Email, r.Phone, r.CPF)
	if err != nil {
		return nil, err
	}
	if r.ValidationCode != "" {
		code, err := parseValidationCode(r.ValidationCode)
		if err != nil {
			return nil, err
		}
		p.ValidationCode = code
	}

	if r.CertificateBackground != "" || r.CertificateLogo != "" || r.CertificateDetails != "" {
		p.Certificate = &Certificate{
			Background: r.CertificateBackground,
			Logo:       r.CertificateLogo,
			Details:    r.CertificateDetails,
		}
	}

	if r.ProductName != "" || r.OrderID != 0 {
		event := &Event{
			OrderID:     int64(r.OrderID),
			ProductID:   int64(r.ProductID),
			ProductName: r.ProductName,
		}
		if event.OrderDate, err = parseDate("order_date", r.OrderDate); err != nil {
			return nil, err
		}
		if event.CheckinAt, err = parseDate("time_checkin", r.TimeCheckin); err != nil {
			return nil, err
		}
		if r.CheckinLatitude.Valid || r.CheckinLongitude.Valid {
			event.Location = &GeoPoint{
				Latitude:  r.CheckinLatitude.Value,
				Longitude: r.CheckinLongitude.Value,
			}
		}
		p.Event = event
	}
	return p, nil
}

// parseValidationCode accepts a raw or formatted code and returns it raw.
func parseValidationCode(code string) (string, error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	if len(raw) != ValidationCodeLength {
		return "", fmt.Errorf("%w: validation_code must have %d characters", ErrValidation, ValidationCodeLength)
	}
	if _, err := strconv.ParseUint(raw, 16, 64); err != nil {
		return "", fmt.Errorf("%w: validation_code must be hexadecimal", ErrValidation)
	}
	return raw, nil
}

func parseDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
	}
	return t, nil
}

// FlexInt accepts a JSON number or a numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*f = FlexInt(v)
	return nil
}

// FlexFloat accepts a JSON number, a numeric string, or an empty value.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(string(data), `"`))
	if raw == "" || raw == "null" {
		*f = FlexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}
