package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	unknownSubjectLabelConstant             = "unknown"
)

const (
	dpkgSearchFlagConstant            = "-S"
	aptFileSearchSubcommandConstant   = "search"
	aptFileListSubcommandConstant     = "list"
	aptCacheDependsSubcommandConstant = "depends"
)

const (
	ownerLookupStartTemplateConstant                 = "Looking up the package owning %s"
	ownerLookupSuccessTemplateConstant               = "Found the package owning %s"
	ownerLookupFailureTemplateConstant               = "No installed package owns %s (exit code %d%s)"
	ownerLookupExecutionFailureTemplateConstant      = "Unable to look up the package owning %s: %s"
	contentsSearchStartTemplateConstant              = "Searching package contents for %s"
	contentsSearchSuccessTemplateConstant            = "Searched package contents for %s"
	contentsSearchFailureTemplateConstant            = "Package contents search for %s found nothing (exit code %d%s)"
	contentsSearchExecutionFailureTemplateConstant   = "Unable to search package contents for %s: %s"
	fileListingStartTemplateConstant                 = "Listing files of package %s"
	fileListingSuccessTemplateConstant               = "Listed files of package %s"
	fileListingFailureTemplateConstant               = "Failed to list files of package %s (exit code %d%s)"
	fileListingExecutionFailureTemplateConstant      = "Unable to list files of package %s: %s"
	dependencyLookupStartTemplateConstant            = "Reading dependencies of package %s"
	dependencyLookupSuccessTemplateConstant          = "Read dependencies of package %s"
	dependencyLookupFailureTemplateConstant          = "Failed to read dependencies of package %s (exit code %d%s)"
	dependencyLookupExecutionFailureTemplateConstant = "Unable to read dependencies of package %s: %s"
)

type messageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	ownerLookupTemplates = messageTemplates{
		start:            ownerLookupStartTemplateConstant,
		success:          ownerLookupSuccessTemplateConstant,
		failure:          ownerLookupFailureTemplateConstant,
		executionFailure: ownerLookupExecutionFailureTemplateConstant,
	}
	contentsSearchTemplates = messageTemplates{
		start:            contentsSearchStartTemplateConstant,
		success:          contentsSearchSuccessTemplateConstant,
		failure:          contentsSearchFailureTemplateConstant,
		executionFailure: contentsSearchExecutionFailureTemplateConstant,
	}
	fileListingTemplates = messageTemplates{
		start:            fileListingStartTemplateConstant,
		success:          fileListingSuccessTemplateConstant,
		failure:          fileListingFailureTemplateConstant,
		executionFailure: fileListingExecutionFailureTemplateConstant,
	}
	dependencyLookupTemplates = messageTemplates{
		start:            dependencyLookupStartTemplateConstant,
		success:          dependencyLookupSuccessTemplateConstant,
		failure:          dependencyLookupFailureTemplateConstant,
		executionFailure: dependencyLookupExecutionFailureTemplateConstant,
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	switch command.Name {
	case CommandDpkg:
		if containsArgument(arguments, dpkgSearchFlagConstant) {
			return formatter.describe(ownerLookupTemplates, formatter.lastArgument(arguments), result, failure, stage)
		}
	case CommandAptFile:
		switch formatter.firstNonFlagArgument(arguments) {
		case aptFileSearchSubcommandConstant:
			return formatter.describe(contentsSearchTemplates, formatter.lastArgument(arguments), result, failure, stage)
		case aptFileListSubcommandConstant:
			return formatter.describe(fileListingTemplates, formatter.lastArgument(arguments), result, failure, stage)
		}
	case CommandAptCache:
		if formatter.firstNonFlagArgument(arguments) == aptCacheDependsSubcommandConstant {
			return formatter.describe(dependencyLookupTemplates, formatter.lastArgument(arguments), result, failure, stage)
		}
	}
	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describe(templates messageTemplates, subject string, result ExecutionResult, failure error, stage messageStage) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, subject, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	commandParts = append(commandParts, command.Details.Arguments...)
	return strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) lastArgument(arguments []string) string {
	if len(arguments) == 0 {
		return unknownSubjectLabelConstant
	}
	lastValue := strings.TrimSpace(arguments[len(arguments)-1])
	if len(lastValue) == 0 {
		return unknownSubjectLabelConstant
	}
	return lastValue
}

func (formatter CommandMessageFormatter) firstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, "-") {
			continue
		}
		return trimmedArgument
	}
	return emptyStringConstant
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}
