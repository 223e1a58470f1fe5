package invitations

import "github.com/pkg/errors"

// ErrorCode classifies why an invitation cannot be used.
type ErrorCode string

const (
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeExpired        ErrorCode = "EXPIRED"
	CodeConsumed       ErrorCode = "CONSUMED"
	CodeInvalid        ErrorCode = "INVALID"
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

var messageByCode = map[ErrorCode]string{
	CodeNotFound:       "Invite link was not found.",
	CodeExpired:        "Invite link has expired.",
	CodeConsumed:       "Invite link has already been used.",
	CodeInvalid:        "Invite link is invalid.",
	CodeNotImplemented: "Client invitations are not supported yet.",
}

const defaultInviteErrorMessage = "Unable to accept invitation."

// InviteError is a terminal, user-presentable invitation failure. It is
// returned as a value so callers can branch on the code and render the
// message without treating the outcome as a system fault.
type InviteError struct {
	Code    ErrorCode
	Message string
}

func (e *InviteError) Error() string {
	return e.Message
}

func newInviteError(code ErrorCode) *InviteError {
	message, ok := messageByCode[code]
	if !ok {
		message = defaultInviteErrorMessage
	}
	return &InviteError{Code: code, Message: message}
}

// AsInviteError unwraps err into an InviteError when it carries one.
func AsInviteError(err error) (*InviteError, bool) {
	var inviteErr *InviteError
	if errors.As(err, &inviteErr) {
		return inviteErr, true
	}
	return nil, false
}

// ErrPermissionDenied is the issuer's soft failure for inviters without an
// owner or admin membership in the target agency.
var ErrPermissionDenied = errors.New("you do not have permission to invite members for this agency")
