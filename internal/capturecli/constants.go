package capturecli

import "time"

// Default run parameters.
const (
	DefaultTopN    = 10
	DefaultTimeout = 30 * time.Second

	// analysisTimeout bounds the analysis call; the remote service may take
	// close to five minutes.
	analysisTimeout = 5 * time.Minute
)

const filePermission = 0600
