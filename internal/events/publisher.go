package events

import "context"

// Publisher announces finished analysis runs to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt AnalysisCompleted) error
}
