package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "draftgated", Short: "gate daemon"}
	AddHelpJSONFlag(root)

	judge := &cobra.Command{Use: "judge", Short: "run the gate", Aliases: []string{"j"}, RunE: func(*cobra.Command, []string) error { return nil }}
	judge.Flags().StringP("file", "f", "", "input file")
	judge.Flags().String("profile", "balanced", "judge profile")
	_ = judge.MarkFlagRequired("file")

	migrate := &cobra.Command{Use: "migrate", Short: "schema migrations", ValidArgs: []string{"up", "down"}}
	hidden := &cobra.Command{Use: "debug", Hidden: true}

	root.AddCommand(judge, migrate, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(newTestRoot())

	assert.Equal(t, "draftgated", schema.Name)
	assert.Empty(t, schema.Flags)
	require.Len(t, schema.Subcommands, 2)

	judge := schema.Subcommands[0]
	assert.Equal(t, "judge", judge.Name)
	require.Len(t, judge.Flags, 2)
	assert.Equal(t, FlagSchema{Name: "file", Shorthand: "f", Type: "string", Description: "input file", Required: true}, judge.Flags[0])
	assert.Equal(t, "profile", judge.Flags[1].Name)
	assert.Equal(t, "balanced", judge.Flags[1].Default)
	assert.False(t, judge.Flags[1].Required)

	assert.Equal(t, []string{"up", "down"}, schema.Subcommands[1].Args)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, newTestRoot()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "gate daemon", decoded.Description)
}

func TestFindTargetCommand(t *testing.T) {
	root := newTestRoot()

	assert.Equal(t, "judge", FindTargetCommand(root, []string{"judge"}).Name())
	assert.Equal(t, "judge", FindTargetCommand(root, []string{"j"}).Name())
	assert.Equal(t, "draftgated", FindTargetCommand(root, []string{"--verbose"}).Name())
	assert.Equal(t, "draftgated", FindTargetCommand(root, nil).Name())
}
