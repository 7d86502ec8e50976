// Package errtax is the error taxonomy (C4, spec.md §4.4 and §7) — the
// only way failures leave the kernel. Every catch site converts its raw
// error into a *Error so the stream never carries a raw provider
// exception across the process boundary.
package errtax

import (
	"errors"
	"fmt"
)

// Kind is a stable taxonomy entry, matching the rows of spec.md §7.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnknownTool        Kind = "unknown_tool"
	KindBackendConnection  Kind = "backend_connection"
	KindBackendTimeout     Kind = "backend_timeout"
	KindBackendToolError   Kind = "backend_tool_error"
	KindAIModelTimeout     Kind = "ai_model_timeout"
	KindAIModelQuota       Kind = "ai_model_quota"
	KindAIModelUnavailable Kind = "ai_model_unavailable"
	KindInsufficientCredit Kind = "insufficient_credits"
	KindLedgerUnavailable  Kind = "ledger_unavailable"
	KindMemoryIO           Kind = "memory_io"
	KindSessionBusy        Kind = "session_busy"
	KindCancelled          Kind = "cancelled"
)

// Code is the stable three-digit-group code surfaced to callers (spec.md §6).
type Code string

const (
	CodeUnknown            Code = "1000"
	CodeValidation         Code = "1001"
	CodeUnauthorized       Code = "1002"
	CodeRateLimited        Code = "1003"
	CodeTransport          Code = "2000"
	CodeBackendConnection  Code = "3000"
	CodeBackendToolError   Code = "3003"
	CodeBackendTimeout     Code = "3004"
	CodeAIModelUnavailable Code = "4001"
	CodeAIModelTimeout     Code = "4002"
	CodeAIModelQuota       Code = "4003"
	CodeNotFound           Code = "5000"
	CodeInternal           Code = "5001"
	CodeDB                 Code = "5002"
	CodeAccountAuthExpired Code = "6001"
	CodeInsufficientCredit Code = "6011"
	CodeLedger             Code = "6012"
)

// kindMeta holds the static properties of a Kind: its external code,
// whether it is retryable, and the user-facing message-table entry.
type kindMeta struct {
	code       Code
	retryable  bool
	message    string
	action     string
	actionURL  string
}

var registry = map[Kind]kindMeta{
	KindValidation:         {code: CodeValidation, retryable: false, message: "the request was invalid"},
	KindUnknownTool:        {code: CodeInternal, retryable: false, message: "the planner referenced an unknown tool"},
	KindBackendConnection:  {code: CodeBackendConnection, retryable: true, message: "could not reach the backend service"},
	KindBackendTimeout:     {code: CodeBackendTimeout, retryable: true, message: "the backend service timed out"},
	KindBackendToolError:   {code: CodeBackendToolError, retryable: false, message: "the tool reported an error"},
	KindAIModelTimeout:     {code: CodeAIModelTimeout, retryable: true, message: "the model timed out"},
	KindAIModelQuota:       {code: CodeAIModelQuota, retryable: true, message: "the model quota was exhausted"},
	KindAIModelUnavailable: {code: CodeAIModelUnavailable, retryable: true, message: "the model is unavailable"},
	KindInsufficientCredit: {code: CodeInsufficientCredit, retryable: false, message: "insufficient credits", action: "Top up credits", actionURL: "/billing"},
	KindLedgerUnavailable:  {code: CodeLedger, retryable: true, message: "the credit ledger is unavailable"},
	KindMemoryIO:           {code: CodeDB, retryable: false, message: "session storage is unavailable"},
	KindSessionBusy:        {code: CodeRateLimited, retryable: false, message: "this session is busy with another request"},
	KindCancelled:          {code: CodeUnknown, retryable: false, message: "the run was cancelled"},
}

// Error is the taxonomy-classified error carried across the kernel
// boundary. It implements error/Unwrap so callers can still errors.Is the
// underlying cause.
type Error struct {
	Kind       Kind
	Cause      error
	Details    map[string]any
	RetryAfter int // seconds; only meaningful for KindAIModelQuota
}

func (e *Error) Error() string {
	meta := registry[e.Kind]
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", meta.message, e.Cause)
	}
	return meta.message
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable external error code for this taxonomy entry.
func (e *Error) Code() Code { return registry[e.Kind].code }

// Retryable reports whether the Kind is retryable per spec.md §7.
func (e *Error) Retryable() bool { return registry[e.Kind].retryable }

// Message returns the user-facing message-table entry for this Kind.
func (e *Error) Message() string { return registry[e.Kind].message }

// Action returns the remediation hint (if any) for this Kind, e.g. 6011 ->
// "Top up credits".
func (e *Error) Action() (action, url string) {
	meta := registry[e.Kind]
	return meta.action, meta.actionURL
}

// New builds a classified error of the given kind wrapping cause.
func New(kind Kind, cause error, details map[string]any) *Error {
	return &Error{Kind: kind, Cause: cause, Details: details}
}

// Is allows errors.Is(err, errtax.KindX) style checks via a sentinel
// wrapper — used sparingly; prefer As to inspect Kind directly.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// As extracts a *Error from an error chain.
func As(err error) (*Error, bool) {
	var te *Error
	ok := errors.As(err, &te)
	return te, ok
}
