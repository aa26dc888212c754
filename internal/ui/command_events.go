package ui

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/execshell"
)

const (
	queryCountFieldConstant     = "queries"
	failedCountFieldConstant    = "unanswered"
	timeoutCountFieldConstant   = "timed_out"
	querySummaryMessageConstant = "Package metadata queries finished"
)

// QueryStatistics tallies metadata queries observed during one audit.
type QueryStatistics struct {
	Issued     int
	Unanswered int
	TimedOut   int
}

// ConsoleCommandEventLogger renders package tooling invocations for people watching the console.
// Queries that exit non-zero are routine misses and stay at debug level; queries that never produced a result are warnings.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter

	statisticsMutex sync.Mutex
	statistics      QueryStatistics
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.statisticsMutex.Lock()
	eventLogger.statistics.Issued++
	eventLogger.statisticsMutex.Unlock()
	eventLogger.logger.Debug(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Debug(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.statisticsMutex.Lock()
	eventLogger.statistics.Unanswered++
	if errors.Is(failure, context.DeadlineExceeded) {
		eventLogger.statistics.TimedOut++
	}
	eventLogger.statisticsMutex.Unlock()
	eventLogger.logger.Warn(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

// Statistics returns a snapshot of the tallies collected so far.
func (eventLogger *ConsoleCommandEventLogger) Statistics() QueryStatistics {
	if eventLogger == nil {
		return QueryStatistics{}
	}
	eventLogger.statisticsMutex.Lock()
	defer eventLogger.statisticsMutex.Unlock()
	return eventLogger.statistics
}

// LogSummary emits the collected tallies at info level.
func (eventLogger *ConsoleCommandEventLogger) LogSummary() {
	if eventLogger == nil {
		return
	}
	statistics := eventLogger.Statistics()
	eventLogger.logger.Info(
		querySummaryMessageConstant,
		zap.Int(queryCountFieldConstant, statistics.Issued),
		zap.Int(failedCountFieldConstant, statistics.Unanswered),
		zap.Int(timeoutCountFieldConstant, statistics.TimedOut),
	)
}
