package makemkv

import (
	"context"
	"log/slog"
	"strings"

	"discripper/internal/logging"
)

// MakeMKV MSG codes emitted as MSG:code,flags,count,"text",... in robot
// mode. Codes at or above 5000 concern the disc or rip as a whole.
const (
	MsgReadError            = 2003
	MsgWriteError           = 2019
	MsgTitleError           = 5003
	MsgRipCompleted         = 5004
	MsgDiscOpenError        = 5010
	MsgEvalExpiredTooOld    = 5021
	MsgRipSummary           = 5037
	MsgEvalPeriodExpired    = 5052
	MsgEvalExpiredShareware = 5055
	MsgBackupFailed         = 5080
)

// MsgError is a MakeMKV message that ended the rip.
type MsgError struct {
	Code    int
	Message string
	Hint    string
}

func (e *MsgError) Error() string {
	if e.Hint != "" {
		return e.Message + " (" + e.Hint + ")"
	}
	return e.Message
}

// msgTracker follows MSG lines during a rip and records the outcome.
type msgTracker struct {
	logger     *slog.Logger
	cancel     context.CancelCauseFunc
	saved      int
	failed     int
	sawSummary bool
	readErrors int
	fatal      error
	messages   []string
}

func (h *msgTracker) handle(line string) {
	kind, fields, ok := splitRobotLine(line)
	if !ok || kind != "MSG" || len(fields) < 4 {
		return
	}
	code := atoi(fields[0])
	text := strings.TrimSpace(fields[3])

	switch code {
	case MsgReadError:
		h.readErrors++
		logging.WarnWithContext(h.logger, "makemkv read error", "makemkv_read_error",
			logging.String(logging.FieldErrorHint, "disc may be scratched or dirty"),
			logging.String(logging.FieldImpact, "rip may be incomplete"),
			logging.Int("read_error_count", h.readErrors),
			logging.String("msg_text", text),
		)
	case MsgWriteError:
		if strings.Contains(text, "No such file") {
			h.abort(&MsgError{Code: code, Message: text, Hint: "check that the raw directory exists and is writable"})
		}
	case MsgTitleError:
		logging.WarnWithContext(h.logger, "makemkv title save failed", "makemkv_title_error",
			logging.String(logging.FieldErrorHint, "one title failed but others may succeed"),
			logging.String(logging.FieldImpact, "title missing from rip output"),
			logging.String("msg_text", text),
		)
	case MsgRipCompleted:
		h.sawSummary = true
		if len(fields) > 5 {
			h.saved = atoi(fields[5])
		}
		if len(fields) > 6 {
			h.failed = atoi(fields[6])
		}
		h.logger.Info("makemkv rip result",
			logging.String(logging.FieldEventType, "makemkv_rip_result"),
			logging.Int("titles_saved", h.saved),
			logging.Int("titles_failed", h.failed),
		)
	case MsgEvalExpiredTooOld, MsgEvalExpiredShareware:
		h.abort(&MsgError{Code: code, Message: text, Hint: "update or register MakeMKV"})
	case MsgEvalPeriodExpired:
		logging.WarnWithContext(h.logger, "makemkv evaluation period expiring", "makemkv_eval_warning",
			logging.String(logging.FieldErrorHint, "install a license key"),
			logging.String(logging.FieldImpact, "ripping stops when the evaluation ends"),
		)
	case MsgDiscOpenError, MsgBackupFailed:
		h.messages = append(h.messages, text)
		logging.ErrorWithContext(h.logger, "makemkv disc error", "makemkv_disc_error",
			logging.Int("msg_code", code),
			logging.String("msg_text", text),
		)
	default:
		if code >= 5000 {
			h.messages = append(h.messages, text)
		}
		h.logger.Debug("makemkv message", logging.Int("msg_code", code), logging.String("msg_text", text))
	}
}

func (h *msgTracker) abort(err *MsgError) {
	if h.fatal == nil {
		h.fatal = err
	}
	if h.cancel != nil {
		h.cancel(err)
	}
}

// summary describes the disc-level messages seen during the run.
func (h *msgTracker) summary() string {
	return strings.Join(h.messages, "; ")
}
