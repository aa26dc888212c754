package buildstage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dockwise/internal/buildstage"
)

func TestParseAcceptsKnownStagesCaseInsensitively(testInstance *testing.T) {
	testCases := []struct {
		input    string
		expected buildstage.Stage
	}{
		{input: "base", expected: buildstage.Base},
		{input: " Build ", expected: buildstage.Build},
		{input: "DEVELOPMENT", expected: buildstage.Development},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.input, func(testInstance *testing.T) {
			var stage buildstage.Stage
			require.NoError(testInstance, stage.UnmarshalText([]byte(testCase.input)))
			require.Equal(testInstance, testCase.expected, stage)
		})
	}
}

func TestParseRejectsUnknownStages(testInstance *testing.T) {
	_, parseError := buildstage.Parse("production")
	require.EqualError(testInstance, parseError, `unknown build stage "production" (expected base, build or development)`)
}
