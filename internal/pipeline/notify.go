package pipeline

import (
	"github.com/hashicorp/go-hclog"
)

// Notifier is told when a stage is about to be retried and when a stage
// has failed for good.
type Notifier interface {
	NotifyRetry(rc *RunContext, stage string, attempt int, err error)
	NotifyFailure(rc *RunContext, stage string, err error)
}

type NopNotifier struct{}

func (NopNotifier) NotifyRetry(*RunContext, string, int, error) {}
func (NopNotifier) NotifyFailure(*RunContext, string, error)    {}

// LogNotifier writes a notice to the log for each configured recipient.
// Delivery is left to whatever collects the log.
type LogNotifier struct {
	Logger     hclog.Logger
	Recipients []string
	OnRetry    bool
	OnFailure  bool
}

func (n *LogNotifier) NotifyRetry(rc *RunContext, stage string, attempt int, err error) {
	if !n.OnRetry || len(n.Recipients) == 0 {
		return
	}
	n.Logger.Warn("📧 Retry notification",
		"run_id", rc.RunID, "dag_id", rc.Spec.DAGID, "stage", stage, "attempt", attempt,
		"recipients", n.Recipients, "error", err)
}

func (n *LogNotifier) NotifyFailure(rc *RunContext, stage string, err error) {
	if !n.OnFailure || len(n.Recipients) == 0 {
		return
	}
	n.Logger.Error("📧 Failure notification",
		"run_id", rc.RunID, "dag_id", rc.Spec.DAGID, "stage", stage,
		"recipients", n.Recipients, "error", err)
}
