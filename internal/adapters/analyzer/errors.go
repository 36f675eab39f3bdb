package analyzer

import "errors"

var ErrNoEndpoint = errors.New("analysis endpoint not configured")
