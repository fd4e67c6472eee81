package worker

import (
	"context"

	"omnisum/internal/models"
)

type JobType string

const (
	Summarize JobType = "summarize"
	Stop      JobType = "stop"
)

// Job is one unit handed from the dispatcher to a worker.
type Job struct {
	Type      JobType
	ClientKey string
	task      *summaryTask
}

type summaryTask struct {
	ctx      context.Context
	modality models.Modality
	input    models.RawInput
	resultCh chan workerReturn
}

type workerReturn struct {
	result *models.SummaryResult
	err    error
}
