package errors

import (
	"errors"
	"fmt"
)

var (
	// Transport errors
	ErrBindingUDP = errors.New("failed to bind UDP")

	// Meet server errors
	ErrListenMeet          = errors.New("failed to listen for registrations")
	ErrReceiveRegistration = errors.New("failed to receive registration")

	// Connector errors
	ErrPubAddrRetrieve = errors.New("failed to get public address")
	ErrRegisterPeer    = errors.New("failed to register with meet server")
	ErrWaitForPeer     = errors.New("failed to wait for remote peer")
	ErrTransportCreate = errors.New("failed to create peer transport")
)

func Wrap(step error, err error) error {
	return fmt.Errorf("%w: %w", step, err)
}
