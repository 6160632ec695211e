package processingmetrics

import "errors"

var ErrInvalid = errors.New("invalid processing metric")
