package conformsql

// Exit codes returned by the conformsql command.
const (
	// ExitSuccess indicates every test passed and cleanup succeeded.
	ExitSuccess = 0
	// ExitFailure indicates one or more tests failed.
	ExitFailure = 1
	// ExitConfigError indicates an invalid configuration, argument or script.
	ExitConfigError = 2
	// ExitEnvError indicates the database environment could not be prepared or restored.
	ExitEnvError = 3
)
