package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pmgate", cmd.Use)
	assert.Contains(t, cmd.Long, "process-mining")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"ingest", "gate", "discover", "conformance", "performance", "run", "status"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	outputFlag := runCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
	assert.Equal(t, "output", outputFlag.DefValue)

	for _, name := range []string{
		"input", "ingest-config", "case", "timestamp-format",
		"missing-value-threshold", "dedupe-keys", "mask-strategy",
		"miner-selection", "conformance-method", "oracle", "oracle-dir",
		"ledger", "attempt-limit",
	} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should accept --%s", name)
	}

	assert.Equal(t, "2", runCmd.Flags().Lookup("attempt-limit").DefValue)
	assert.Equal(t, "alignments", runCmd.Flags().Lookup("conformance-method").DefValue)
}

func TestStageCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		has     []string
		lacks   []string
	}{
		{"ingest", []string{"input", "ingest-config", "timestamp-dayfirst"}, []string{"oracle", "mask-strategy"}},
		{"gate", []string{"input", "impute-missing-timestamps", "timestamp-utc"}, []string{"oracle", "miner-selection"}},
		{"discover", []string{"miner-selection", "oracle-command"}, []string{"input", "conformance-method"}},
		{"conformance", []string{"conformance-method", "top-deviations", "oracle-dir"}, []string{"miner-selection"}},
		{"performance", []string{"output", "ledger"}, []string{"oracle"}},
		{"status", []string{"output", "ledger"}, []string{"attempt-limit"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := NewRootCommand().Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.has {
				assert.NotNil(t, sub.Flags().Lookup(name), "--%s", name)
			}
			for _, name := range tt.lacks {
				assert.Nil(t, sub.Flags().Lookup(name), "--%s", name)
			}
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "status", "--format", "yaml", "--output", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnknownFlag(t *testing.T) {
	_, stderr, err := execute(t, "status", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "no-such-flag")
}
