package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptCmd(stdin string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetErr(&errOut)
	return cmd, &errOut
}

func TestPromptLine(t *testing.T) {
	cmd, errOut := promptCmd("  qa.lead \n")
	got, err := promptLine(cmd, "User name")
	require.NoError(t, err)
	assert.Equal(t, "qa.lead", got)
	assert.Equal(t, "User name: ", errOut.String())
}

func TestReadLine(t *testing.T) {
	got, err := readLine(bufio.NewReader(strings.NewReader("lastline")))
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = readLine(bufio.NewReader(strings.NewReader("")))
	require.ErrorIs(t, err, io.EOF)

	_, err = readLine(bufio.NewReader(strings.NewReader("   \n")))
	require.ErrorIs(t, err, errEmptyInput)
}

func TestPromptPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	cmd, errOut := promptCmd("")
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	pw, err := promptPassword(cmd, "Password to sign CLOSURE")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Equal(t, "Password to sign CLOSURE: \n", errOut.String())

	readPassword = func(int) ([]byte, error) { return nil, nil }
	_, err = promptPassword(cmd, "Password")
	require.ErrorIs(t, err, errEmptyInput)

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = promptPassword(cmd, "Password")
	require.ErrorContains(t, err, "not a terminal")
}
