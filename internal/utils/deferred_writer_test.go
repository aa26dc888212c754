package utils_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dockwise/internal/utils"
)

type shortWriter struct{}

func (shortWriter) Write(data []byte) (int, error) {
	return len(data) / 2, nil
}

func TestDeferredWriterHoldsOutputUntilFlush(testInstance *testing.T) {
	var destination bytes.Buffer
	bufferedDestination := bufio.NewWriter(&destination)
	deferredWriter := utils.NewDeferredWriter(bufferedDestination)

	_, writeError := deferredWriter.Write([]byte("first\n"))
	require.NoError(testInstance, writeError)
	_, writeError = deferredWriter.Write([]byte("second\n"))
	require.NoError(testInstance, writeError)
	require.Empty(testInstance, destination.String())

	require.NoError(testInstance, deferredWriter.Flush())
	require.Equal(testInstance, "first\nsecond\n", destination.String())

	require.NoError(testInstance, deferredWriter.Flush())
	require.Equal(testInstance, "first\nsecond\n", destination.String())
}

func TestDeferredWriterReportsShortWrites(testInstance *testing.T) {
	deferredWriter := utils.NewDeferredWriter(shortWriter{})
	_, writeError := deferredWriter.Write([]byte("report"))
	require.NoError(testInstance, writeError)
	require.ErrorIs(testInstance, deferredWriter.Flush(), utils.ErrShortWrite)
}

func TestNewDeferredWriterRejectsNilDestination(testInstance *testing.T) {
	require.Nil(testInstance, utils.NewDeferredWriter(nil))
}
