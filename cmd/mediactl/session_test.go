package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	valid      bool
	validErr   error
	signOutErr error
	signedOut  int
}

func (f *fakeSession) Valid(ctx context.Context) (bool, error) {
	return f.valid, f.validErr
}

func (f *fakeSession) SignOut(ctx context.Context) error {
	f.signedOut++
	return f.signOutErr
}

func TestEndSession(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name          string
		session       *fakeSession
		expectedEnded bool
		expectedErr   error
		signOutCalls  int
	}{
		{name: "valid session", session: &fakeSession{valid: true}, expectedEnded: true, signOutCalls: 1},
		{name: "no session", session: &fakeSession{}, signOutCalls: 0},
		{name: "check fails", session: &fakeSession{validErr: errBoom}, expectedErr: errBoom},
		{name: "sign out fails", session: &fakeSession{valid: true, signOutErr: errBoom}, expectedErr: errBoom, signOutCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ended, err := endSession(context.Background(), tt.session)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedEnded, ended)
			assert.Equal(t, tt.signOutCalls, tt.session.signedOut)
		})
	}
}
