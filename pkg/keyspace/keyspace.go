// Package keyspace maps every entity stored in the single chat table to its
// (partition key, sort key) pair and back.
//
// Layout:
//
//	User profile          USER#<username>           PROFILE
//	User directory entry  USERS                     <username>
//	Channel               CHANNEL                   <channelId>
//	Channel message       CHANNEL#<channelId>       MSG#<stamp>
//	Direct message        DM#<low>#<high>           MSG#<stamp>
//
// <stamp> is a Unix millisecond timestamp zero-padded to 13 digits, so sort
// key order is chronological order. <low> and <high> are the two
// participants' usernames in lexicographic order.
//
// Key is a closed set: Decode either returns one of the concrete key types
// in this package or an error wrapping ErrMalformedKey.
package keyspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	separator = "#"

	prefixUser           = "USER#"
	prefixChannelMessage = "CHANNEL#"
	prefixDirectMessage  = "DM#"

	// MessagePrefix starts the sort key of every channel and direct message.
	MessagePrefix = "MSG#"

	// UserDirectoryPartition holds one item per registered username.
	UserDirectoryPartition = "USERS"

	// ChannelListPartition holds one item per channel.
	ChannelListPartition = "CHANNEL"

	// ProfileSortKey is the sort key of every user profile.
	ProfileSortKey = "PROFILE"

	stampWidth = 13
)

var (
	// ErrMalformedKey is returned when a key pair does not decode to exactly
	// one entity kind.
	ErrMalformedKey = errors.New("malformed key")

	// ErrInvalidID is returned when a logical id cannot be embedded in a key.
	ErrInvalidID = errors.New("invalid id")
)

// reserved ids would make a key ambiguous with a fixed literal.
var reserved = map[string]struct{}{
	"USER":    {},
	"USERS":   {},
	"CHANNEL": {},
	"DM":      {},
	"MSG":     {},
	"PROFILE": {},
}

// Kind names an entity kind.
type Kind string

const (
	KindUserProfile    Kind = "user_profile"
	KindUserDirectory  Kind = "user_directory"
	KindChannel        Kind = "channel"
	KindChannelMessage Kind = "channel_message"
	KindDirectMessage  Kind = "direct_message"
)

// Key is the logical key of one item. The set of implementations is closed.
type Key interface {
	Kind() Kind
	// Encode returns the partition and sort key of the item.
	Encode() (pk, sk string)
	validate() error
}

// UserProfile addresses the profile of one user.
type UserProfile struct {
	Username string
}

func (UserProfile) Kind() Kind { return KindUserProfile }

func (k UserProfile) Encode() (string, string) {
	return prefixUser + k.Username, ProfileSortKey
}

func (k UserProfile) validate() error { return ValidateID(k.Username) }

// UserDirectory addresses the directory entry of one user.
type UserDirectory struct {
	Username string
}

func (UserDirectory) Kind() Kind { return KindUserDirectory }

func (k UserDirectory) Encode() (string, string) {
	return UserDirectoryPartition, k.Username
}

func (k UserDirectory) validate() error { return ValidateID(k.Username) }

// Channel addresses the metadata item of one channel.
type Channel struct {
	ChannelID string
}

func (Channel) Kind() Kind { return KindChannel }

func (k Channel) Encode() (string, string) {
	return ChannelListPartition, k.ChannelID
}

func (k Channel) validate() error { return ValidateID(k.ChannelID) }

// ChannelMessage addresses one message in a channel.
type ChannelMessage struct {
	ChannelID string
	Stamp     int64
	// Raw is the stored sort key when it is not the padded form of Stamp.
	// Only Decode sets it; Encode then returns it unchanged.
	Raw string
}

func (ChannelMessage) Kind() Kind { return KindChannelMessage }

func (k ChannelMessage) Encode() (string, string) {
	return ChannelMessagesPartition(k.ChannelID), messageSortKey(k.Stamp, k.Raw)
}

func (k ChannelMessage) validate() error {
	if err := ValidateID(k.ChannelID); err != nil {
		return err
	}
	return validateRaw(k.Stamp, k.Raw)
}

// DirectMessage addresses one message in a DM thread. Low and High are the
// participants in lexicographic order; use NewDirectMessage to build one
// from an unordered pair.
type DirectMessage struct {
	Low   string
	High  string
	Stamp int64
	// Raw has the same meaning as ChannelMessage.Raw.
	Raw string
}

// NewDirectMessage returns the key of a DM between a and b. The result does
// not depend on argument order.
func NewDirectMessage(a, b string, stamp int64) DirectMessage {
	low, high := order(a, b)
	return DirectMessage{Low: low, High: high, Stamp: stamp}
}

func (DirectMessage) Kind() Kind { return KindDirectMessage }

func (k DirectMessage) Encode() (string, string) {
	return ThreadPartition(k.Low, k.High), messageSortKey(k.Stamp, k.Raw)
}

func (k DirectMessage) validate() error {
	if err := ValidateID(k.Low); err != nil {
		return err
	}
	if err := ValidateID(k.High); err != nil {
		return err
	}
	if k.Low >= k.High {
		return fmt.Errorf("%w: thread participants %q and %q are not in canonical order", ErrMalformedKey, k.Low, k.High)
	}
	return validateRaw(k.Stamp, k.Raw)
}

// Encode validates k and returns its partition and sort key.
func Encode(k Key) (pk, sk string, err error) {
	if k == nil {
		return "", "", fmt.Errorf("%w: nil key", ErrMalformedKey)
	}
	if err := k.validate(); err != nil {
		return "", "", err
	}
	pk, sk = k.Encode()
	return pk, sk, nil
}

// Decode maps a stored key pair back to its logical key.
func Decode(pk, sk string) (Key, error) {
	var k Key

	switch {
	case pk == UserDirectoryPartition:
		k = UserDirectory{Username: sk}

	case pk == ChannelListPartition:
		k = Channel{ChannelID: sk}

	case strings.HasPrefix(pk, prefixUser):
		if sk != ProfileSortKey {
			return nil, fmt.Errorf("%w: user partition %q has unexpected sort key %q", ErrMalformedKey, pk, sk)
		}
		k = UserProfile{Username: strings.TrimPrefix(pk, prefixUser)}

	case strings.HasPrefix(pk, prefixChannelMessage):
		stamp, err := ParseMessageSortKey(sk)
		if err != nil {
			return nil, err
		}
		k = ChannelMessage{ChannelID: strings.TrimPrefix(pk, prefixChannelMessage), Stamp: stamp, Raw: rawSortKey(stamp, sk)}

	case strings.HasPrefix(pk, prefixDirectMessage):
		parts := strings.Split(strings.TrimPrefix(pk, prefixDirectMessage), separator)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: thread partition %q must name exactly two participants", ErrMalformedKey, pk)
		}
		stamp, err := ParseMessageSortKey(sk)
		if err != nil {
			return nil, err
		}
		k = DirectMessage{Low: parts[0], High: parts[1], Stamp: stamp, Raw: rawSortKey(stamp, sk)}

	default:
		return nil, fmt.Errorf("%w: unknown partition %q", ErrMalformedKey, pk)
	}

	if err := k.validate(); err != nil {
		return nil, fmt.Errorf("decode %q/%q: %w", pk, sk, err)
	}
	return k, nil
}

// ChannelMessagesPartition returns the partition holding a channel's messages.
func ChannelMessagesPartition(channelID string) string {
	return prefixChannelMessage + channelID
}

// ThreadPartition returns the partition holding the DM thread between a and
// b. ThreadPartition(a, b) == ThreadPartition(b, a).
func ThreadPartition(a, b string) string {
	low, high := order(a, b)
	return prefixDirectMessage + low + separator + high
}

// MessageSortKey encodes a Unix millisecond stamp.
func MessageSortKey(stamp int64) string {
	return fmt.Sprintf("%s%0*d", MessagePrefix, stampWidth, stamp)
}

// ParseMessageSortKey decodes a message sort key. Unpadded stamps written by
// older clients decode to the same value; Decode keeps such keys verbatim in
// the Raw field.
func ParseMessageSortKey(sk string) (int64, error) {
	digits, ok := strings.CutPrefix(sk, MessagePrefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: %q is not a message sort key", ErrMalformedKey, sk)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q is not a message sort key", ErrMalformedKey, sk)
		}
	}
	stamp, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedKey, sk, err)
	}
	return stamp, nil
}

// StampOf returns the message stamp for t.
func StampOf(t time.Time) int64 {
	return t.UnixMilli()
}

// TimeOf is the inverse of StampOf.
func TimeOf(stamp int64) time.Time {
	return time.UnixMilli(stamp).UTC()
}

// ValidateID reports whether id can be embedded in a key without colliding
// with a fixed literal or the separator.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, separator)
	}
	if _, ok := reserved[strings.ToUpper(id)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	return nil
}

func messageSortKey(stamp int64, raw string) string {
	if raw != "" {
		return raw
	}
	return MessageSortKey(stamp)
}

// rawSortKey returns sk if it differs from the canonical encoding of stamp.
func rawSortKey(stamp int64, sk string) string {
	if sk == MessageSortKey(stamp) {
		return ""
	}
	return sk
}

func validateRaw(stamp int64, raw string) error {
	if err := validateStamp(stamp); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	parsed, err := ParseMessageSortKey(raw)
	if err != nil {
		return err
	}
	if parsed != stamp {
		return fmt.Errorf("%w: sort key %q does not encode stamp %d", ErrMalformedKey, raw, stamp)
	}
	return nil
}

func validateStamp(stamp int64) error {
	if stamp < 0 {
		return fmt.Errorf("%w: negative stamp %d", ErrMalformedKey, stamp)
	}
	if len(strconv.FormatInt(stamp, 10)) > stampWidth {
		return fmt.Errorf("%w: stamp %d exceeds %d digits", ErrMalformedKey, stamp, stampWidth)
	}
	return nil
}

func order(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
