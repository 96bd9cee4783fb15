// Package notify turns workflow outcomes into user-visible notifications.
//
// Notifications are keyed to the triggering action. Failure messages use the
// first structured error detail available; when a failure carries none, a
// generic per-action fallback is shown instead. No outcome is ever silently
// swallowed.
package notify

import (
	"log/slog"
	"sync"

	"github.com/favourlabs/favour/pkg/fault"
)

// Action identifies the user action a notification belongs to.
type Action string

const (
	ActionUploadEvidence Action = "upload_evidence"
	ActionDelete         Action = "delete"
)

// fallbacks are the generic failure messages per action.
var fallbacks = map[Action]string{
	ActionUploadEvidence: "Could not submit your evidence. Please try again.",
	ActionDelete:         "Could not delete the favour. Please try again.",
}

// successes are the success messages per action.
var successes = map[Action]string{
	ActionUploadEvidence: "Evidence submitted.",
	ActionDelete:         "Favour deleted.",
}

// Notifier receives the outcome of a user-triggered action.
type Notifier interface {
	Success(action Action, message string)
	Failure(action Action, message string, err error)
}

// SuccessMessage returns the success message for an action.
func SuccessMessage(action Action) string {
	if msg, ok := successes[action]; ok {
		return msg
	}
	return "Done."
}

// FailureMessage derives the user-facing message for a failed action: the
// first structured detail in err's chain, else the generic fallback.
func FailureMessage(action Action, err error) string {
	if detail := fault.DetailOf(err); detail != "" {
		return detail
	}
	if msg, ok := fallbacks[action]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// SlogNotifier logs outcomes through slog; it is the default sink when the
// embedding surface does not provide its own.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n SlogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n SlogNotifier) Success(action Action, message string) {
	n.logger().Info("action succeeded", "action", string(action), "message", message)
}

func (n SlogNotifier) Failure(action Action, message string, err error) {
	n.logger().Warn("action failed", "action", string(action), "message", message, "error", err)
}

// Recorded is one captured notification.
type Recorded struct {
	Action  Action
	Message string
	Err     error
	Success bool
}

// Recorder captures notifications for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Recorded
}

func (r *Recorder) Success(action Action, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Recorded{Action: action, Message: message, Success: true})
}

func (r *Recorder) Failure(action Action, message string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Recorded{Action: action, Message: message, Err: err})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.entries))
	copy(out, r.entries)
	return out
}
