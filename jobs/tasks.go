package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep flags past-due installments as OVERDUE.
	TaskOverdueSweep = "collections:overdue_sweep"
	// TaskCreditIntegrity reconciles clients.credit_used with the ledger.
	TaskCreditIntegrity = "collections:credit_integrity"
)

// SweepPayload carries scheduling metadata for the nightly jobs.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewCreditIntegrityTask constructs an Asynq task for the credit reconciliation.
func NewCreditIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCreditIntegrity, body, asynq.Queue(QueueDefault)), nil
}
