package crm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ActivityKind string

const (
	KindCall  ActivityKind = "call"
	KindEmail ActivityKind = "email"
	KindNote  ActivityKind = "note"
	KindQuote ActivityKind = "quote"
)

var (
	ErrUnknownActivity = errors.New("unknown activity kind")
	ErrInvalidActivity = errors.New("invalid activity")
)

// Activity is one entry on a customer's timeline. Each kind carries only its own fields.
type Activity interface {
	Kind() ActivityKind
	At() time.Time
	Validate() error
}

type Call struct {
	When            time.Time `json:"at"`
	DurationSeconds int       `json:"durationSeconds"`
	Outcome         string    `json:"outcome"`
}

type Email struct {
	When      time.Time `json:"at"`
	Subject   string    `json:"subject"`
	Direction string    `json:"direction"` // inbound or outbound
}

type Note struct {
	When time.Time `json:"at"`
	Body string    `json:"body"`
}

type Quote struct {
	When        time.Time `json:"at"`
	TrailerID   string    `json:"trailerId"`
	AmountCents int64     `json:"amountCents"`
	ValidUntil  time.Time `json:"validUntil"`
}

func (Call) Kind() ActivityKind  { return KindCall }
func (Email) Kind() ActivityKind { return KindEmail }
func (Note) Kind() ActivityKind  { return KindNote }
func (Quote) Kind() ActivityKind { return KindQuote }

func (a Call) At() time.Time  { return a.When }
func (a Email) At() time.Time { return a.When }
func (a Note) At() time.Time  { return a.When }
func (a Quote) At() time.Time { return a.When }

func (a Call) Validate() error {
	if a.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative call duration", ErrInvalidActivity)
	}
	return nil
}

func (a Email) Validate() error {
	if strings.TrimSpace(a.Subject) == "" {
		return fmt.Errorf("%w: email needs a subject", ErrInvalidActivity)
	}
	if a.Direction != "inbound" && a.Direction != "outbound" {
		return fmt.Errorf("%w: email direction %q", ErrInvalidActivity, a.Direction)
	}
	return nil
}

func (a Note) Validate() error {
	if strings.TrimSpace(a.Body) == "" {
		return fmt.Errorf("%w: empty note", ErrInvalidActivity)
	}
	return nil
}

func (a Quote) Validate() error {
	if a.TrailerID == "" || a.AmountCents <= 0 {
		return fmt.Errorf("%w: quote needs a trailer and a positive amount", ErrInvalidActivity)
	}
	if !a.ValidUntil.IsZero() && a.ValidUntil.Before(a.When) {
		return fmt.Errorf("%w: quote expires before it was issued", ErrInvalidActivity)
	}
	return nil
}

// MarshalActivity encodes a with a "kind" discriminator.
func MarshalActivity(a Activity) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(a.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}

// UnmarshalActivity decodes a payload written by MarshalActivity and validates it.
func UnmarshalActivity(data []byte) (Activity, error) {
	var head struct {
		Kind ActivityKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}

	var a Activity
	var err error
	switch head.Kind {
	case KindCall:
		var v Call
		err = json.Unmarshal(data, &v)
		a = v
	case KindEmail:
		var v Email
		err = json.Unmarshal(data, &v)
		a = v
	case KindNote:
		var v Note
		err = json.Unmarshal(data, &v)
		a = v
	case KindQuote:
		var v Quote
		err = json.Unmarshal(data, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivity, head.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s activity: %w", head.Kind, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
