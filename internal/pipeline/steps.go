package pipeline

// Step names one stage of an analysis run.
type Step string

const (
	StepValidate        Step = "validate"
	StepCreateItem      Step = "create_item"
	StepEnqueue         Step = "enqueue"
	StepAnalyze         Step = "analyze"
	StepArchive         Step = "archive_response"
	StepParse           Step = "parse_response"
	StepStoreAnalysis   Step = "store_analysis"
	StepCompleteQueue   Step = "complete_queue"
	StepRecordMetric    Step = "record_metric"
	StepPublishEvent    Step = "publish_event"
	StepMarkQueueFailed Step = "mark_queue_failed"
)

// Policy decides what a step failure does to the run.
type Policy int

const (
	// Critical failures abort the run.
	Critical Policy = iota
	// Advisory failures are logged and counted and the run continues.
	Advisory
)

var stepPolicies = map[Step]Policy{
	StepValidate:        Critical,
	StepCreateItem:      Critical,
	StepEnqueue:         Advisory,
	StepAnalyze:         Critical,
	StepArchive:         Advisory,
	StepParse:           Critical,
	StepStoreAnalysis:   Critical,
	StepCompleteQueue:   Advisory,
	StepRecordMetric:    Advisory,
	StepPublishEvent:    Advisory,
	StepMarkQueueFailed: Advisory,
}

// PolicyFor returns the failure policy of s. Unknown steps are critical.
func PolicyFor(s Step) Policy {
	if p, ok := stepPolicies[s]; ok {
		return p
	}
	return Critical
}

// AdvisoryFailure records a non-fatal step failure of a run.
type AdvisoryFailure struct {
	Step Step
	Err  error
}
