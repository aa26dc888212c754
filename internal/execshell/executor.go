package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant        = "%s exited with code %d"
	commandFailedWithStderrTemplateConstant   = "%s exited with code %d: %s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %v"
	logFieldCommandNameConstant               = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldTimeoutConstant                   = "timeout"
	defaultCommandTimeoutConstant             = 10 * time.Second
	localeEnvironmentVariableNameConstant     = "LC_ALL"
	localeEnvironmentVariableValueConstant    = "C"
)

// CommandName identifies an external executable.
type CommandName string

// Supported package tooling executables.
const (
	CommandDpkg     CommandName = "dpkg"
	CommandAptFile  CommandName = "apt-file"
	CommandAptCache CommandName = "apt-cache"
)

var (
	// ErrLoggerNotConfigured indicates that NewShellExecutor received a nil logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates that NewShellExecutor received a nil runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandDetails describes the arguments and environment of a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable output of a finished command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that ran but exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	trimmedStandardError := strings.TrimSpace(failedError.Result.StandardError)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedErrorTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithStderrTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a command that could not be started or was interrupted.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutorOption customizes a ShellExecutor.
type ShellExecutorOption func(executor *ShellExecutor)

// WithCommandTimeout bounds every command executed by the executor. Non-positive values keep the default.
func WithCommandTimeout(timeout time.Duration) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		if timeout > 0 {
			executor.commandTimeout = timeout
		}
	}
}

// WithCommandEventObserver registers an observer for command lifecycle events.
func WithCommandEventObserver(observer CommandEventObserver) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		if observer != nil {
			executor.observer = observer
		}
	}
}

// ShellExecutor runs package tooling commands with logging and timeouts.
type ShellExecutor struct {
	logger         *zap.Logger
	runner         CommandRunner
	observer       CommandEventObserver
	formatter      CommandMessageFormatter
	commandTimeout time.Duration
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, options ...ShellExecutorOption) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	executor := &ShellExecutor{
		logger:         logger,
		runner:         runner,
		observer:       noopCommandEventObserver{},
		formatter:      CommandMessageFormatter{},
		commandTimeout: defaultCommandTimeoutConstant,
	}
	for _, option := range options {
		if option != nil {
			option(executor)
		}
	}
	return executor, nil
}

// Execute runs the command under the configured timeout. Non-zero exits yield CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}
	command.Details = withStableLocale(command.Details)

	boundedContext, cancel := context.WithTimeout(executionContext, executor.commandTimeout)
	defer cancel()

	executor.observer.CommandStarted(command)
	executor.logger.Debug(
		executor.formatter.BuildStartedMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
	)

	executionResult, runError := executor.runner.Run(boundedContext, command)
	if runError == nil && boundedContext.Err() != nil {
		runError = boundedContext.Err()
	}
	if runError != nil {
		executor.observer.CommandExecutionFailed(command, runError)
		executor.logger.Debug(
			executor.formatter.BuildExecutionFailureMessage(command, runError),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Duration(logFieldTimeoutConstant, executor.commandTimeout),
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, executionResult)
	if executionResult.ExitCode != 0 {
		executor.logger.Debug(
			executor.formatter.BuildFailureMessage(command, executionResult),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		executor.formatter.BuildSuccessMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
	)
	return executionResult, nil
}

// ExecuteDpkg runs dpkg with the provided details.
func (executor *ShellExecutor) ExecuteDpkg(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandDpkg, Details: details})
}

// ExecuteAptFile runs apt-file with the provided details.
func (executor *ShellExecutor) ExecuteAptFile(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandAptFile, Details: details})
}

// ExecuteAptCache runs apt-cache with the provided details.
func (executor *ShellExecutor) ExecuteAptCache(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandAptCache, Details: details})
}

// withStableLocale pins the locale so tool output stays parseable.
func withStableLocale(details CommandDetails) CommandDetails {
	if _, configured := details.EnvironmentVariables[localeEnvironmentVariableNameConstant]; configured {
		return details
	}
	environmentVariables := make(map[string]string, len(details.EnvironmentVariables)+1)
	for environmentKey, environmentValue := range details.EnvironmentVariables {
		environmentVariables[environmentKey] = environmentValue
	}
	environmentVariables[localeEnvironmentVariableNameConstant] = localeEnvironmentVariableValueConstant
	details.EnvironmentVariables = environmentVariables
	return details
}
