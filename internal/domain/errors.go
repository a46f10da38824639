package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	// Chat session errors.
	ErrConnect         = fmt.Errorf("could not connect to chat server")
	ErrNotConnected    = fmt.Errorf("chat connection is closed")
	ErrProfileRequired = fmt.Errorf("user profile required")
	ErrNoImage         = fmt.Errorf("no image selected")
	ErrSessionClosed   = fmt.Errorf("chat session closed")

	// Image analysis errors.
	ErrAnalysisFailed = fmt.Errorf("image analysis failed")
	ErrNotAnImage     = fmt.Errorf("file must be an image")
	ErrUploadTooLarge = fmt.Errorf("upload too large")

	// Resilience errors.
	ErrCircuitOpen = fmt.Errorf("service temporarily unavailable")
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")

	// Gateway errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)

	// Storage / config errors.
	ErrStorage    = fmt.Errorf("local storage failed")
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Session.SendText")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "analyzer"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// DetailOf returns the human-readable detail of the outermost DomainError in
// the chain, falling back to err.Error().
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeProviderError   ErrorCode = "PROVIDER_ERROR"
	CodeConnect         ErrorCode = "CONNECT"
	CodeNotConnected    ErrorCode = "NOT_CONNECTED"
	CodeProfileRequired ErrorCode = "PROFILE_REQUIRED"
	CodeNoImage         ErrorCode = "NO_IMAGE"
	CodeSessionClosed   ErrorCode = "SESSION_CLOSED"
	CodeAnalysisFailed  ErrorCode = "ANALYSIS_FAILED"
	CodeNotAnImage      ErrorCode = "NOT_AN_IMAGE"
	CodeUploadTooLarge  ErrorCode = "UPLOAD_TOO_LARGE"
	CodeCircuitOpen     ErrorCode = "CIRCUIT_OPEN"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodeGatewayAuth     ErrorCode = "GATEWAY_AUTH"
	CodeStorage         ErrorCode = "STORAGE"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeDecryption      ErrorCode = "DECRYPTION"

	// Subsystem-specific codes.
	CodeProfileNotFound  ErrorCode = "PROFILE_NOT_FOUND"
	CodeProfileInvalid   ErrorCode = "PROFILE_INVALID"
	CodeAnalyzerTimeout  ErrorCode = "ANALYZER_TIMEOUT"
	CodeAssistantTimeout ErrorCode = "ASSISTANT_TIMEOUT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	ErrConnect:           CodeConnect,
	ErrNotConnected:      CodeNotConnected,
	ErrProfileRequired:   CodeProfileRequired,
	ErrNoImage:           CodeNoImage,
	ErrSessionClosed:     CodeSessionClosed,
	ErrAnalysisFailed:    CodeAnalysisFailed,
	ErrNotAnImage:        CodeNotAnImage,
	ErrUploadTooLarge:    CodeUploadTooLarge,
	ErrCircuitOpen:       CodeCircuitOpen,
	ErrRateLimit:         CodeRateLimit,
	ErrAuthInvalid:       CodeAuthInvalid,
	ErrGatewayAuthFailed: CodeGatewayAuth,
	ErrStorage:           CodeStorage,
	ErrConfigLoad:        CodeConfigLoad,
	ErrDecryption:        CodeDecryption,
}

// subSystemCodeMap resolves category sentinels to subsystem-specific codes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"profile": CodeProfileNotFound,
	},
	ErrInvalidInput: {
		"profile": CodeProfileInvalid,
	},
	ErrTimeout: {
		"analyzer":  CodeAnalyzerTimeout,
		"assistant": CodeAssistantTimeout,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// ErrGatewayAuthFailed wraps ErrAuthInvalid, so check the more specific one first.
	if errors.Is(err, ErrGatewayAuthFailed) {
		return CodeGatewayAuth
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
