// Package errors defines sentinel errors for every RPC, tagged with both
// a gRPC status code and the stable numeric error ID from the protocol
// spec. Return these unwrapped — wrapping with fmt.Errorf("...: %w", ...)
// changes the gRPC code observed on the wire.
package errors

import "github.com/heroiclabs/nakama-common/runtime"

// gRPC status codes used across the sentinel set.
const (
	CodeInternal   = 13 // codes.Internal
	CodeInvalidArg = 3  // codes.InvalidArgument
	CodeForbidden  = 7  // codes.PermissionDenied
)

// Admin / init (numeric IDs 1-2).
var (
	ErrNotAdmin          = runtime.NewError("[1] not admin", CodeForbidden)
	ErrAlreadyInitialized = runtime.NewError("[2] already initialized", CodeInvalidArg)
)

// Player (numeric IDs 10-16).
var (
	ErrInsufficientBalance     = runtime.NewError("[10] insufficient balance", CodeInvalidArg)
	ErrInsufficientFactionPts  = runtime.NewError("[11] insufficient faction points", CodeInvalidArg)
	ErrInvalidAmount           = runtime.NewError("[12] invalid amount", CodeInvalidArg)
	ErrInvalidFaction          = runtime.NewError("[13] invalid faction", CodeInvalidArg)
	ErrFactionAlreadyLocked    = runtime.NewError("[14] faction already locked", CodeInvalidArg)
	ErrPlayerNotFound          = runtime.NewError("[15] player not found", CodeInvalidArg)
	ErrFactionNotSelected      = runtime.NewError("[16] faction not selected", CodeInvalidArg)
)

// Game (numeric IDs 20-26).
var (
	ErrGameNotWhitelisted     = runtime.NewError("[20] game not whitelisted", CodeForbidden)
	ErrSessionNotFound        = runtime.NewError("[21] session not found", CodeInvalidArg)
	ErrSessionAlreadyExists   = runtime.NewError("[22] session already exists", CodeInvalidArg)
	ErrInvalidSessionState    = runtime.NewError("[23] invalid session state", CodeInvalidArg)
	ErrInvalidGameOutcome     = runtime.NewError("[24] invalid game outcome", CodeInvalidArg)
	ErrGameExpired            = runtime.NewError("[25] game expired", CodeInvalidArg)
	ErrProofVerificationFailed = runtime.NewError("[26] proof verification failed", CodeInvalidArg)
)

// Epoch (numeric IDs 30-32).
var (
	ErrEpochNotFinalized     = runtime.NewError("[30] epoch not finalized", CodeInvalidArg)
	ErrEpochAlreadyFinalized = runtime.NewError("[31] epoch already finalized", CodeInvalidArg)
	ErrEpochNotReady         = runtime.NewError("[32] epoch not ready", CodeInvalidArg)
)

// Rewards (numeric IDs 40-42).
var (
	ErrNoRewardsAvailable = runtime.NewError("[40] no rewards available", CodeInvalidArg)
	ErrRewardAlreadyClaimed = runtime.NewError("[41] reward already claimed", CodeInvalidArg)
	ErrNotWinningFaction  = runtime.NewError("[42] not winning faction", CodeInvalidArg)
)

// External / math (numeric IDs 50-61).
var (
	ErrVaultError          = runtime.NewError("[50] vault error", CodeInternal)
	ErrSwapError           = runtime.NewError("[51] swap error", CodeInternal)
	ErrTokenTransferError  = runtime.NewError("[52] token transfer error", CodeInternal)
	ErrOverflow            = runtime.NewError("[60] overflow", CodeInternal)
	ErrDivisionByZero      = runtime.NewError("[61] division by zero", CodeInternal)
)

// Emergency (numeric ID 70).
var (
	ErrContractPaused = runtime.NewError("[70] contract paused", CodeInvalidArg)
)

// Internal/miscellaneous — not part of the spec's numbered taxonomy, but
// needed for the surrounding plumbing (marshal/unmarshal, storage I/O,
// missing request context) the same way the teacher's errors package
// carries "ErrMarshal"/"ErrCouldNotReadStorage" alongside its numbered
// domain errors.
var (
	ErrNoUserIDFound       = runtime.NewError("no user ID in context", CodeInvalidArg)
	ErrInvalidInput        = runtime.NewError("invalid request", CodeInvalidArg)
	ErrMarshal             = runtime.NewError("cannot marshal type", CodeInternal)
	ErrUnmarshal           = runtime.NewError("cannot unmarshal type", CodeInternal)
	ErrCouldNotReadStorage = runtime.NewError("could not read storage", CodeInternal)
	ErrCouldNotWriteStorage = runtime.NewError("could not write storage", CodeInternal)
	ErrInternal            = runtime.NewError("internal server error", CodeInternal)
)
