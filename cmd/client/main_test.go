package main

import (
	"testing"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want *command
	}{
		{"create memory", &command{create: game.KindMemory}},
		{"close", &command{close: true}},
		{"start", &command{action: &game.Action{Type: game.ActionStart}}},
		{"reset", &command{action: &game.Action{Type: game.ActionReset}}},
		{"reset confirm", &command{action: &game.Action{Type: game.ActionReset, Confirm: true}}},
		{"hit 3", &command{action: &game.Action{Type: game.ActionHit, Target: 3}}},
		{"flip 11", &command{action: &game.Action{Type: game.ActionFlip, Target: 11}}},
		{"type the quick  fox", &command{action: &game.Action{Type: game.ActionInput, Text: "the quick  fox"}}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := parseCommand("quit")
	assert.ErrorIs(t, err, errQuit)

	for _, line := range []string{"create", "hit x", "flip", "jump"} {
		_, err := parseCommand(line)
		assert.Error(t, err, line)
		assert.NotErrorIs(t, err, errQuit, line)
	}
}

func TestFormatMessage(t *testing.T) {
	msg, err := messages.NewMessage(messages.MessageTypeServerError, "abc", &messages.ServerError{Message: "nope"})
	require.NoError(t, err)
	assert.Equal(t, messages.MessageTypeServerError.String()+` abc {"message":"nope"}`, formatMessage(msg))
}
