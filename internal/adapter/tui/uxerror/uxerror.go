// Package uxerror translates raw errors into user-friendly alerts with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"virtualfit/internal/adapter/tui/theme"
	"virtualfit/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title    string   // short heading, e.g. "Connection Failed"
	Message  string   // one-liner explanation
	Hints    []string // actionable recovery suggestions
	Raw      string   // original error text (for debug)
	Blocking bool     // shown as an alert the user must dismiss
}

// Render formats the FriendlyError as alert body text.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinels first so errors.Is works through wrapping.
	{
		match: is(domain.ErrConnect),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:    "Connection Failed",
				Message:  "Could not connect to the VirtualFit assistant.",
				Hints:    []string{"Check that the chat server is running", "Verify client.chat_url in config", "Check your network connection"},
				Raw:      err.Error(),
				Blocking: true,
			}
		},
	},
	{
		match: is(domain.ErrProfileRequired),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:    "Profile Required",
				Message:  "Complete your fitness profile before chatting.",
				Hints:    []string{"Run 'virtualfit profile set <file>' with a YAML or JSON profile", "Check the saved profile with 'virtualfit profile show'"},
				Raw:      err.Error(),
				Blocking: true,
			}
		},
	},
	{
		match:   is(domain.ErrNotConnected),
		produce: constantError("Not Connected", "The chat connection is closed.", []string{"Restart virtualfit to reconnect"}),
	},
	{
		match:   is(domain.ErrNoImage),
		produce: constantError("No Image Selected", "Pick an image file to analyze.", []string{"Usage: /image <path>"}),
	},
	{
		match:   is(domain.ErrNotAnImage),
		produce: constantError("Not an Image", "The selected file is not an image.", []string{"Choose a JPEG, PNG or WebP photo of your meal"}),
	},
	{
		match:   is(domain.ErrUploadTooLarge),
		produce: detailError("Image Too Large", []string{"Resize or compress the photo and try again"}),
	},
	{
		match:   is(domain.ErrCircuitOpen),
		produce: constantError("Service Unavailable", "The service failed repeatedly and is paused.", []string{"Wait a few seconds before retrying"}),
	},
	{
		match:   is(domain.ErrRateLimit),
		produce: constantError("Rate Limited", "Too many requests in a short time.", []string{"Wait a moment before retrying"}),
	},
	{
		match:   is(domain.ErrAnalysisFailed),
		produce: detailError("Image Analysis Failed", []string{"Try a clearer photo", "Check that the analysis server is reachable"}),
	},
	{
		match:   is(domain.ErrAuthInvalid),
		produce: constantError("Authentication Failed", "The server rejected the client token.", []string{"Check client.token in config"}),
	},
	{
		match:   is(domain.ErrStorage),
		produce: detailError("Local Storage Error", []string{"Check permissions on the storage path", "Verify storage.path in config"}),
	},
	{
		match:   is(domain.ErrSessionClosed),
		produce: constantError("Session Closed", "This chat session has ended.", []string{"Restart virtualfit"}),
	},

	// Network patterns for errors that did not pass through a domain sentinel.
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the remote service.", []string{"Check your internet connection", "Verify the service URL in config"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "timed out"),
		produce: constantError("Request Timed Out", "The request took too long to complete.", []string{"Check your network connection", "Increase client.request_timeout in config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: domain.DetailOf(err),
		Hints:   []string{"Try again", "Set logger.level to debug for more details"},
		Raw:     err.Error(),
	}
}

// IsBlocking reports whether err should interrupt the user with an alert
// rather than appear as a chat bubble.
func IsBlocking(err error) bool {
	return err != nil && Humanize(err).Blocking
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}

// detailError uses the DomainError detail as the message.
func detailError(title string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: domain.DetailOf(err),
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
