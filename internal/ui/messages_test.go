package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

func TestWarnNoticeSteps(t *testing.T) {
	sender := model.Sender{UserID: 7, Username: "spammer"}

	first := WarnNotice(sender, "links are not allowed here", 1, 3)
	if !strings.Contains(first, "1/3") || !strings.HasPrefix(first, "@spammer") {
		t.Fatalf("unexpected first notice: %q", first)
	}

	last := WarnNotice(sender, "links are not allowed here", 3, 3)
	if !strings.Contains(last, "3/3") || !strings.Contains(last, "last warning") {
		t.Fatalf("unexpected terminal notice: %q", last)
	}
}

func TestMentionFallsBackToNameAndID(t *testing.T) {
	if got := Mention(model.Sender{UserID: 1, FirstName: "Ann"}); got != "Ann" {
		t.Fatalf("unexpected mention: %q", got)
	}
	if got := Mention(model.Sender{UserID: 42}); got != "user 42" {
		t.Fatalf("unexpected mention: %q", got)
	}
}

func TestFormatTerm(t *testing.T) {
	tests := []struct {
		duration  time.Duration
		permanent bool
		want      string
	}{
		{duration: 48 * time.Hour, want: "for 2d"},
		{duration: 3 * time.Hour, want: "for 3h"},
		{duration: 15 * time.Minute, want: "for 15m"},
		{duration: 90 * time.Second, want: "for 1m30s"},
		{duration: time.Hour, permanent: true, want: "permanently"},
	}
	for _, tt := range tests {
		if got := FormatTerm(tt.duration, tt.permanent); got != tt.want {
			t.Fatalf("unexpected term for %v: got %q want %q", tt.duration, got, tt.want)
		}
	}
}

func TestDegradedNoticeNamesPenalty(t *testing.T) {
	got := DegradedNotice(model.Sender{Username: "x_user"}, "reason", enums.PenaltyBan)
	if !strings.Contains(got, "banned") {
		t.Fatalf("unexpected degraded notice: %q", got)
	}
}
