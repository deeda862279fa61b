package transport

import (
	"crypto/tls"
	"errors"
	"testing"
)

func TestTranslateTLSErrorAlertMapsToCryptoError(t *testing.T) {
	alert := tls.AlertError(42) // bad_certificate, arbitrary for the test
	got := translateTLSError(alert)

	var qerr *Error
	if !errors.As(got, &qerr) {
		t.Fatalf("translateTLSError did not return a *Error: %v", got)
	}
	want := cryptoError(uint8(alert))
	if qerr.Code != want {
		t.Fatalf("Code = %v, want %v", qerr.Code, want)
	}
}

func TestTranslateTLSErrorNonAlertFallsBackToCryptoErrorStart(t *testing.T) {
	got := translateTLSError(errors.New("boom"))

	var qerr *Error
	if !errors.As(got, &qerr) {
		t.Fatalf("translateTLSError did not return a *Error: %v", got)
	}
	if qerr.Code != cryptoErrorStart {
		t.Fatalf("Code = %v, want cryptoErrorStart", qerr.Code)
	}
}

func TestLevelSpaceRoundTrip(t *testing.T) {
	spaces := []packetSpace{packetSpaceInitial, packetSpaceHandshake, packetSpaceApplication}
	for _, space := range spaces {
		level := levelFromSpace(space)
		got, ok := spaceFromLevel(level)
		if !ok {
			t.Fatalf("spaceFromLevel(%v) rejected a level levelFromSpace produced", level)
		}
		if got != space {
			t.Errorf("round trip for space %v produced %v", space, got)
		}
	}
}
