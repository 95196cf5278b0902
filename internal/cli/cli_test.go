package cli

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot(defaults Globals) *cobra.Command {
	root := NewRoot(defaults)
	readmem := &cobra.Command{Use: "readmem ADDR"}
	readmem.Flags().BoolP("word", "w", false, "")
	readmem.Flags().IntP("length", "n", 256, "")
	root.AddCommand(readmem, &cobra.Command{Use: "manifest"})
	return root
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		command string
		args    []string
		globals Globals
	}{
		{
			name:    "bare command",
			argv:    []string{ProgramName, "manifest"},
			command: "manifest",
			args:    []string{},
		},
		{
			name:    "globals before the command",
			argv:    []string{ProgramName, "--archive", "build.zip", "-p", "bench", "manifest"},
			command: "manifest",
			args:    []string{},
			globals: Globals{Archive: "build.zip", Probe: "bench"},
		},
		{
			name:    "globals after the command",
			argv:    []string{ProgramName, "readmem", "-d", "core.dump", "0x20000000"},
			command: "readmem",
			args:    []string{"0x20000000"},
			globals: Globals{Dump: "core.dump"},
		},
		{
			name:    "unknown command is returned for dispatch",
			argv:    []string{ProgramName, "-c", "LPC55S69", "frobnicate", "x"},
			command: "frobnicate",
			args:    []string{"x"},
			globals: Globals{Chip: "LPC55S69"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Parse(testRoot(Globals{}), tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.command, inv.Command)
			assert.Equal(t, tt.args, inv.Args)
			assert.Equal(t, tt.globals, inv.Globals)
		})
	}
}

func TestParseResetsBetweenCalls(t *testing.T) {
	root := testRoot(Globals{Probe: "bench"})

	inv, err := Parse(root, []string{ProgramName, "--probe", "rack", "readmem", "-w", "-n", "16", "0x0"})
	require.NoError(t, err)
	assert.Equal(t, "rack", inv.Probe)
	word, _ := inv.Flags.GetBool("word")
	assert.True(t, word)

	inv, err = Parse(root, Split("readmem 0x0"))
	require.NoError(t, err)
	assert.Equal(t, "bench", inv.Probe, "defaults survive a reset")
	word, _ = inv.Flags.GetBool("word")
	assert.False(t, word)
	n, _ := inv.Flags.GetInt("length")
	assert.Equal(t, 256, n)
	assert.False(t, inv.Flags.Changed("length"))
}

func TestParseNoCommand(t *testing.T) {
	_, err := Parse(testRoot(Globals{}), nil)
	assert.ErrorIs(t, err, ErrNoCommand)

	inv, err := Parse(testRoot(Globals{}), []string{ProgramName, "--chip", "x"})
	assert.ErrorIs(t, err, ErrNoCommand)
	require.NotNil(t, inv)
	assert.Equal(t, "x", inv.Chip)
}

func TestParseHelp(t *testing.T) {
	for _, argv := range [][]string{
		{ProgramName, "--help"},
		{ProgramName, "readmem", "-h"},
	} {
		_, err := Parse(testRoot(Globals{}), argv)
		var help *HelpError
		require.True(t, errors.As(err, &help), "argv %v: got %v", argv, err)
		assert.ErrorIs(t, err, pflag.ErrHelp)
	}

	_, err := Parse(testRoot(Globals{}), []string{ProgramName, "readmem", "-h"})
	var help *HelpError
	require.ErrorAs(t, err, &help)
	assert.Equal(t, "readmem", help.Grammar.Name())
}

func TestParseBadFlag(t *testing.T) {
	_, err := Parse(testRoot(Globals{}), []string{ProgramName, "readmem", "--length", "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "halyard readmem")
}

func TestProbeSelector(t *testing.T) {
	assert.Equal(t, AutoProbe, (&Invocation{}).ProbeSelector())
	assert.Equal(t, AutoProbe, (&Invocation{Globals: Globals{Probe: "  "}}).ProbeSelector())
	assert.Equal(t, "bench", (&Invocation{Globals: Globals{Probe: "bench"}}).ProbeSelector())
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{ProgramName, "readmem", "-w", "0x0"}, Split("readmem -w 0x0"))
	// Only single spaces separate words.
	assert.Equal(t, []string{ProgramName, "a", "", "b"}, Split("a  b"))
}
