package config

import "time"

type HandshakeConfig interface {
	GetHandshakeTimeout() time.Duration
	GetClosePollInterval() time.Duration
	GetPopupWidth() int
	GetPopupHeight() int
	GetSuccessCloseDelay() time.Duration
	GetErrorCloseDelay() time.Duration
}

type Handshake struct{}

var _ HandshakeConfig = Handshake{}

func (Handshake) GetHandshakeTimeout() time.Duration {
	return 60 * time.Second
}

func (Handshake) GetClosePollInterval() time.Duration {
	return 500 * time.Millisecond
}

func (Handshake) GetPopupWidth() int {
	return 500
}

func (Handshake) GetPopupHeight() int {
	return 600
}

func (Handshake) GetSuccessCloseDelay() time.Duration {
	return 1 * time.Second // Let the user see the confirmation before the window goes away
}

func (Handshake) GetErrorCloseDelay() time.Duration {
	return 5 * time.Second // Long enough to read the error
}
