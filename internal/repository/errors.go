// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrRaceLost signals that a conditional update was beaten by
// a concurrent writer and the caller should re-read before retrying,
// while ErrInsufficientHourglasses indicates the spending precondition
// failed and no balance was deducted.
package repository

import "errors"

// ErrRoomNotFound is returned when a room reference (token or keyword)
// does not resolve to any row. Handlers should translate this into an
// HTTP 404 response.
var ErrRoomNotFound = errors.New("room not found")

// ErrRoomClosed is returned when a mutation is attempted against a room
// whose closed_at marker is already set. Handlers should translate this
// into an HTTP 409 response.
var ErrRoomClosed = errors.New("room closed")

// ErrRaceLost is returned when a compare-and-swap style update matched
// zero rows because another writer changed the compared value first.
// The caller's spend must not be applied; callers may re-read and retry.
var ErrRaceLost = errors.New("conditional update lost race")

// ErrInsufficientHourglasses is returned when a conditional balance
// decrement would overdraw the account. No partial spend occurs.
var ErrInsufficientHourglasses = errors.New("insufficient hourglasses")

// ErrPinNotFound is returned when a room has no pin row at all.
var ErrPinNotFound = errors.New("pin not found")

// ErrPinExpired is returned when an operation requires a live pin but
// the pin's expiry has already passed. Expired pins cannot be extended.
var ErrPinExpired = errors.New("pin expired")

// ErrNicknameTaken is returned when a join would take a nickname that
// another identity already holds in the room, in either direction:
// an anonymous join hitting an account holder's nickname, or an
// account join hitting a nickname someone else registered.
var ErrNicknameTaken = errors.New("nickname already taken in room")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they may not act on, such as hearting their own message.
// Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting existing state. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
