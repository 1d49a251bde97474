// Package version provides version information for the oracle-priority application.
package version

import "runtime"

// Version is the current version of the oracle-priority application.
const Version = "0.3.0"

// AgentString returns the user agent sent to price source endpoints.
// Format: oracle-priority/v{version} ({goos}/{goarch})
func AgentString() string {
	return "oracle-priority/v" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
