// Package events defines the lifecycle notifications sent to the broker and
// the Publisher seam the service layer depends on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the wire discriminator carried in the "type" field.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindResetPassword Kind = "reset_password"
)

var ErrUnknownKind = errors.New("events: unknown event kind")

// Recipient identifies who a notification is addressed to.
type Recipient struct {
	EmailAddress string
	FirstName    string
	LastName     string
}

// Event is a closed set: only types in this package implement it.
type Event interface {
	Kind() Kind
	To() Recipient
	sealed()
}

// Welcome is sent once an account has been persisted.
type Welcome struct {
	Recipient Recipient
}

// ResetPassword carries a password reset token to the account owner.
type ResetPassword struct {
	Recipient Recipient
	Token     string
}

func (Welcome) Kind() Kind      { return KindWelcome }
func (e Welcome) To() Recipient { return e.Recipient }
func (Welcome) sealed()         {}

func (ResetPassword) Kind() Kind      { return KindResetPassword }
func (e ResetPassword) To() Recipient { return e.Recipient }
func (ResetPassword) sealed()         {}

// envelope is the JSON shape consumers read.
type envelope struct {
	Type         Kind   `json:"type"`
	EmailAddress string `json:"email_address"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Token        string `json:"token,omitempty"`
}

func Marshal(e Event) ([]byte, error) {
	env := envelope{Type: e.Kind()}
	r := e.To()
	env.EmailAddress, env.FirstName, env.LastName = r.EmailAddress, r.FirstName, r.LastName

	switch ev := e.(type) {
	case Welcome:
	case ResetPassword:
		env.Token = ev.Token
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, e)
	}
	return json.Marshal(env)
}

// Unmarshal decodes a payload produced by Marshal. "register" is accepted as
// an alias of "welcome" for consumers of the older wire name.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("events: decode: %w", err)
	}
	r := Recipient{EmailAddress: env.EmailAddress, FirstName: env.FirstName, LastName: env.LastName}

	switch env.Type {
	case KindWelcome, "register":
		return Welcome{Recipient: r}, nil
	case KindResetPassword:
		return ResetPassword{Recipient: r, Token: env.Token}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// Publisher hands events to the broker. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
