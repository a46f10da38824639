// Package chat implements the Bubble Tea chat client of virtualfit.
package chat

import "virtualfit/internal/domain"

// ServerEventMsg carries one inbound chat event into the update loop.
type ServerEventMsg struct {
	Event domain.ServerEvent
}

// DisconnectedMsg signals that the listen loop ended. Err is nil on a
// normal shutdown.
type DisconnectedMsg struct {
	Err error
}

// AnalysisDoneMsg carries the outcome of an image analysis started by
// /image.
type AnalysisDoneMsg struct {
	Ref    string
	Result *domain.FoodAnalysis
	Err    error
}

// SendDoneMsg carries the outcome of a chat frame written off the update
// loop.
type SendDoneMsg struct {
	Err error
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
