// Package domain holds the typed identifiers shared across subsystems.
// Distinct UUID types keep a poll id from ever being passed where an
// option id is expected; the compiler enforces what the storage layer
// would otherwise only catch at runtime.
package domain

import (
	"github.com/google/uuid"

	dErrors "livepoll/pkg/domain-errors"
)

type PollID uuid.UUID

type OptionID uuid.UUID

type VoteID uuid.UUID

// NewPollID returns a fresh random poll id.
func NewPollID() PollID { return PollID(uuid.New()) }

// NewOptionID returns a fresh random option id.
func NewOptionID() OptionID { return OptionID(uuid.New()) }

// NewVoteID returns a fresh random vote id.
func NewVoteID() VoteID { return VoteID(uuid.New()) }

func (id PollID) String() string   { return uuid.UUID(id).String() }
func (id OptionID) String() string { return uuid.UUID(id).String() }
func (id VoteID) String() string   { return uuid.UUID(id).String() }

func (id PollID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VoteID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's marshaling, so each id type
// implements encoding.TextMarshaler/Unmarshaler to keep the canonical
// string form on the wire.

func (id PollID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PollID) UnmarshalText(b []byte) error {
	parsed, err := ParsePollID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id OptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *OptionID) UnmarshalText(b []byte) error {
	parsed, err := ParseOptionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id VoteID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *VoteID) UnmarshalText(b []byte) error {
	parsed, err := ParseVoteID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParsePollID validates an id received at a trust boundary. IDs must be
// valid, non-empty, non-nil UUIDs.
func ParsePollID(s string) (PollID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PollID{}, err
	}
	return PollID(u), nil
}

// ParseOptionID validates an option id received at a trust boundary.
func ParseOptionID(s string) (OptionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OptionID{}, err
	}
	return OptionID(u), nil
}

// ParseVoteID validates a vote id received at a trust boundary.
func ParseVoteID(s string) (VoteID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VoteID{}, err
	}
	return VoteID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
