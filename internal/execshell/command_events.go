package execshell

// CommandEventObserver is notified around each package tooling invocation.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	// CommandCompleted fires once a result is available, regardless of the exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed fires when no result could be obtained, including timeouts.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
