// Package modal implements the modal lifecycle controller.
//
// Each controller walks Closed → Opening → Open → Closing → Closed. Open
// completes on the next scheduler tick; Close is debounced by a close
// delay so exit animations can finish. Every arrival at Closed runs a
// document sweep, so a modal can never leave its overlay or scroll lock
// behind. ForceClose is the escape hatch used by recovery and by failing
// host callbacks.
package modal
