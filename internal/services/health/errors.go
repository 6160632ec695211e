package health

import "errors"

var errNoStore = errors.New("no record store configured")
