package domain

// CommandError is the structured error shape returned over the control
// channel. Core components never raise it; it is produced at the command
// boundary only.
type CommandError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func NewCommandError(code, message string) *CommandError {
	return &CommandError{Code: code, Message: message}
}
