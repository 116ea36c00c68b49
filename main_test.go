package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogLevelFromEnv(t *testing.T) {
	testCases := []struct {
		envVal      string
		expectedLvl zerolog.Level
	}{
		{"false", zerolog.Disabled},
		{"0", zerolog.Disabled},
		{"", zerolog.Disabled},
		{"true", zerolog.DebugLevel},
		{"1", zerolog.DebugLevel},
		{"random", zerolog.DebugLevel},
	}

	for _, tc := range testCases {
		t.Setenv("DEBUG_MEEPLE", tc.envVal)
		configureLogLevelFromEnv()
		assert.Equal(t, tc.expectedLvl, zerolog.GlobalLevel(), "DEBUG_MEEPLE=%q", tc.envVal)
	}
}

func TestSetupInterruptListener(t *testing.T) {
	stopChan := setupInterruptListener()
	require.NotNil(t, stopChan)

	stopChan <- os.Interrupt
	select {
	case sig := <-stopChan:
		assert.Equal(t, os.Interrupt, sig)
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive signal on channel")
	}
}

func TestHandleInterrupt(t *testing.T) {
	stopChan := make(chan os.Signal, 1)
	exitCalled := make(chan int, 1)
	logged := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleInterrupt(stopChan, cancel,
		func(msg string) { logged <- msg },
		func(code int) { exitCalled <- code })

	stopChan <- os.Interrupt

	select {
	case code := <-exitCalled:
		assert.Equal(t, 1, code)
		assert.Equal(t, "Interrupt signal received. Exiting...", <-logged)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(time.Second):
		t.Error("exit function was not called on interrupt")
	}
}
