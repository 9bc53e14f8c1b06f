package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunJobsRequiresSubcommand(t *testing.T) {
	err := RunJobs(context.Background(), "127.0.0.1:6379", 0, nil, new(bytes.Buffer))
	require.ErrorContains(t, err, "expected a subcommand")
}

func TestRunJobsRejectsUnknownSubcommand(t *testing.T) {
	err := RunJobs(context.Background(), "127.0.0.1:6379", 0, []string{"purge-everything"}, new(bytes.Buffer))
	require.ErrorContains(t, err, "unknown subcommand")
}

func TestTriggerRejectsUnknownTask(t *testing.T) {
	cli, err := NewJobsCLI("127.0.0.1:6379", 0)
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()

	_, err = cli.Trigger(context.Background(), "stock:defragment", 0)
	require.ErrorContains(t, err, "unsupported job")
}

func TestRunJobsTriggerValidatesArguments(t *testing.T) {
	out := new(bytes.Buffer)
	err := RunJobs(context.Background(), "127.0.0.1:6379", 0, []string{"trigger"}, out)
	require.ErrorContains(t, err, "exactly one task name")
}
