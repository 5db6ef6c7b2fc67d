package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit, acceptable grade
	ExitFailingGrade  = 1 // Scan completed with grade D or F
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitNetworkError  = 3 // Network/connection failure
	ExitInternalError = 4 // Unexpected internal error
)
