package message

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// Validation constants
const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 20
	MinPasswordLength    = 6
	MaxPasswordLength    = 50
	// MaxPasswordBytes is the most input bcrypt accepts.
	MaxPasswordBytes = 72
	MaxChannelNameLength = 50
	MaxChannelIDLength   = 50
	MaxTextLength        = 1000
)

var (
	ErrUsernameLength    = errors.New("username must be between 3 and 20 characters")
	ErrUsernameCharset   = errors.New("username can only contain letters, numbers, and underscores")
	ErrPasswordLength    = errors.New("password must be between 6 and 50 characters")
	ErrPasswordBytes     = errors.New("password must be at most 72 bytes")
	ErrEmptyChannelName  = errors.New("channel name is required")
	ErrChannelNameLength = errors.New("channel name must be less than 50 characters")
	ErrChannelNameChars  = errors.New("channel name can only contain letters, numbers, spaces, hyphens, and underscores")
	ErrChannelID         = errors.New("channel id must be between 1 and 50 characters")
	ErrEmptyText         = errors.New("message cannot be empty")
	ErrTextTooLong       = errors.New("message too long")
	ErrEmptyLogin        = errors.New("username and password are required")
)

var (
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	channelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)
)

// ValidateUsername checks a username chosen at registration.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return ErrUsernameLength
	}
	if !usernamePattern.MatchString(username) {
		return ErrUsernameCharset
	}
	return nil
}

// ValidatePassword checks a password chosen at registration.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return ErrPasswordLength
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordBytes
	}
	return nil
}

// ValidateLogin only requires both fields, so that login never reveals
// which registration rule a stored account might violate.
func ValidateLogin(username, password string) error {
	if username == "" || password == "" {
		return ErrEmptyLogin
	}
	return nil
}

// ValidateChannelName checks the name of a new channel.
func ValidateChannelName(name string) error {
	if name == "" {
		return ErrEmptyChannelName
	}
	if utf8.RuneCountInString(name) > MaxChannelNameLength {
		return ErrChannelNameLength
	}
	if !channelNamePattern.MatchString(name) {
		return ErrChannelNameChars
	}
	return nil
}

// ValidateChannelID checks a channel id taken from a request path.
func ValidateChannelID(id string) error {
	if id == "" || utf8.RuneCountInString(id) > MaxChannelIDLength {
		return ErrChannelID
	}
	return nil
}

// ValidateText checks the body of a channel or direct message.
func ValidateText(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
