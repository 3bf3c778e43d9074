package domain

import "testing"

func TestTransitionClosure(t *testing.T) {
	all := []TranscriptionStatus{StatusNotStarted, StatusInProgress, StatusSubmitted, StatusCompleted}

	allowed := map[[2]TranscriptionStatus]bool{
		{StatusNotStarted, StatusInProgress}: true,
		{StatusInProgress, StatusInProgress}: true,
		{StatusInProgress, StatusSubmitted}:  true,
		{StatusSubmitted, StatusCompleted}:   true,
		{StatusSubmitted, StatusInProgress}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]TranscriptionStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestEditable(t *testing.T) {
	cases := map[TranscriptionStatus]bool{
		StatusNotStarted: true,
		StatusInProgress: true,
		StatusSubmitted:  false,
		StatusCompleted:  false,
	}
	for status, want := range cases {
		if got := status.Editable(); got != want {
			t.Errorf("%s.Editable() = %v, want %v", status, got, want)
		}
	}
}
