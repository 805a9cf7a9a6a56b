package security

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	if IsExpired(time.Now().Add(time.Hour)) {
		t.Error("future expiry reported expired")
	}
	if !IsExpired(time.Now().Add(-time.Hour)) {
		t.Error("past expiry reported live")
	}
}

func TestIsExpiredZeroTimeNeverExpires(t *testing.T) {
	if IsExpired(time.Time{}) {
		t.Error("zero expiry reported expired")
	}
	if IsExpiredWithGracePeriod(time.Time{}, 0) {
		t.Error("zero expiry with zero grace reported expired")
	}
}

func TestIsExpiredWithGracePeriod(t *testing.T) {
	// Expired one second ago, but inside a generous grace window.
	justExpired := time.Now().Add(-time.Second)
	if IsExpiredWithGracePeriod(justExpired, time.Minute) {
		t.Error("expiry within grace period reported expired")
	}
	if !IsExpiredWithGracePeriod(justExpired, 0) {
		t.Error("expiry with zero grace reported live")
	}
}
