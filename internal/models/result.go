package models

import "time"

// OperationResult is the structured outcome of a single mailbox operation.
// Server-level NO/BAD responses are reported here rather than raised; raised
// errors are reserved for precondition violations and broken connections.
type OperationResult struct {
	Success          bool                   `json:"success"`
	Operation        string                 `json:"operation"`
	MessageCount     int                    `json:"messageCount"`
	AffectedMessages []string               `json:"affectedMessages,omitempty"`
	ExecutionTime    time.Duration          `json:"executionTime"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewOperationResult returns a result pre-marked successful.
func NewOperationResult(operation string) *OperationResult {
	return &OperationResult{
		Success:   true,
		Operation: operation,
		Metadata:  make(map[string]interface{}),
	}
}

// Fail marks the result failed and records the cause.
func (r *OperationResult) Fail(err error) *OperationResult {
	r.Success = false
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}

// AddWarning appends a warning without failing the result.
func (r *OperationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// Messages returns the fetched messages carried in the metadata, if any.
func (r *OperationResult) Messages() []*EmailMessage {
	if r.Metadata == nil {
		return nil
	}
	msgs, _ := r.Metadata["messages"].([]*EmailMessage)
	return msgs
}

// SetMessages stores fetched messages in the metadata.
func (r *OperationResult) SetMessages(msgs []*EmailMessage) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata["messages"] = msgs
}

// BulkResult aggregates the outcome of a batched driver.
type BulkResult struct {
	Success            bool          `json:"success"`
	Operation          string        `json:"operation"`
	TotalMessages      int           `json:"totalMessages"`
	SuccessfulMessages int           `json:"successfulMessages"`
	FailedMessages     int           `json:"failedMessages"`
	BatchSize          int           `json:"batchSize"`
	BatchesProcessed   int           `json:"batchesProcessed"`
	ExecutionTime      time.Duration `json:"executionTime"`
	Errors             []string      `json:"errors,omitempty"`
	Warnings           []string      `json:"warnings,omitempty"`
}

func NewBulkResult(operation string, batchSize int) *BulkResult {
	return &BulkResult{
		Operation: operation,
		BatchSize: batchSize,
	}
}

// SuccessRate is the fraction of messages processed successfully, in [0, 1].
func (r *BulkResult) SuccessRate() float64 {
	if r.TotalMessages == 0 {
		return 0
	}
	return float64(r.SuccessfulMessages) / float64(r.TotalMessages)
}

// RecordError counts a failed message and keeps its error message.
func (r *BulkResult) RecordError(err error) {
	r.FailedMessages++
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Finalize computes the overall success flag: a bulk operation fails only
// when nothing succeeded.
func (r *BulkResult) Finalize() *BulkResult {
	r.Success = r.TotalMessages == 0 || r.SuccessfulMessages > 0
	return r
}
