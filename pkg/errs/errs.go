// Package errs holds the numeric, process-wide error taxonomy from
// spec.md §6-§7. These codes are preserved for compatibility with existing
// host-side diagnostic tooling; never renumber them.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a process-wide numeric error code.
type Code int

const (
	// Allocator (100-199)
	HeapFull     Code = 100
	CorruptMem   Code = 101
	InvalidRegion Code = 102
	DoubleFree   Code = 103
	NullBlock    Code = 104
	BlockTooLarge Code = 105
	ForeverFree  Code = 106

	// List (200-299)
	ListCorrupt Code = 200

	// Hash (300-399)
	HashNotPowerOf2   Code = 300
	HashNodeNotInTable Code = 301

	// Scheduler (400-499)
	BadPriority    Code = 400
	InvalidRaisePri Code = 401

	// Signal (500-599)
	SigPostOOR        Code = 500
	SigAttachOOR      Code = 501
	SigGroupOOR       Code = 502
	SigCorruptHandle  Code = 503
	SigMultipleAttach Code = 504

	// Clock (600-699)
	ClockOOR Code = 600

	// Log (700-799)
	LogSize Code = 700

	// Platform (1100-1199)
	CreateSWI Code = 1100
)

var names = map[Code]string{
	HeapFull:           "HEAP_FULL",
	CorruptMem:         "CORRUPT_MEM",
	InvalidRegion:      "INVALID_REGION",
	DoubleFree:         "DOUBLE_FREE",
	NullBlock:          "NULL_BLOCK",
	BlockTooLarge:      "BLOCK_TOO_LARGE",
	ForeverFree:        "FOREVER_FREE",
	ListCorrupt:        "LIST_CORRUPT",
	HashNotPowerOf2:    "HASH_NOT_POWER_OF_2",
	HashNodeNotInTable: "HASH_NODE_NOT_IN_TABLE",
	BadPriority:        "BAD_PRIORITY",
	InvalidRaisePri:    "INVALID_RAISE_PRI",
	SigPostOOR:         "SIG_POST_OOR",
	SigAttachOOR:       "SIG_ATTACH_OOR",
	SigGroupOOR:        "SIG_GROUP_OOR",
	SigCorruptHandle:   "SIG_CORRUPT_HANDLE",
	SigMultipleAttach:  "SIG_MULTIPLE_ATTACH",
	ClockOOR:           "CLOCK_OOR",
	LogSize:            "LOG_SIZE",
	CreateSWI:          "CREATE_SWI",
}

// String renders the code's symbolic name, falling back to the numeric
// value for anything not in the table above.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// Error is a process-wide condition identified by its Code. The scheduler's
// Call, Later and RaisePriority and the signal group's Attach, Post and
// Detach hand it to the installed abort policy (platform.Interrupts.Abort:
// a panic by default, a capturing func set with SetAbort in tests) and then
// also return it to the caller. The allocator, scheduler.New and
// portlog.NewRing only return it; they do not call any abort policy.
type Error struct {
	Code Code
	err  error
}

// New wraps code with a stack trace captured at the call site.
func New(code Code) *Error {
	return &Error{Code: code, err: errors.Errorf("portos: %s", code)}
}

// Newf is New with a formatted detail message appended for diagnostics.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, err: errors.Errorf("portos: %s: "+format, append([]any{code}, args...)...)}
}

func (e *Error) Error() string { return e.err.Error() }

// Unwrap exposes the underlying traced error to errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Fatal reports whether code is always-fatal per the spec.md §7 taxonomy
// (caller-contract violations and debug-only corruption checks), as
// opposed to resource exhaustion (HeapFull), which a caller may configure
// to propagate instead of aborting.
func (c Code) Fatal() bool {
	switch c {
	case HeapFull:
		return false
	default:
		return true
	}
}
