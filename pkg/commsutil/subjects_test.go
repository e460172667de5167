package commsutil

import "testing"

func TestBuildNotificationSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		id     int64
		typ    string
		want   string
	}{
		{"default prefix", "", 7, "state", "facade.notify.7.state"},
		{"custom prefix", "jobs.events", 12, "structure", "jobs.events.12.structure"},
		{"dotted type", "", 3, "log.event", "facade.notify.3.log_event"},
		{"wildcards escaped", "", 3, "a*b>", "facade.notify.3.a_b_"},
		{"empty type", "", 1, "", "facade.notify.1._"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildNotificationSubject(tt.prefix, tt.id, tt.typ)
			if got != tt.want {
				t.Errorf("BuildNotificationSubject(%q, %d, %q) = %q, want %q", tt.prefix, tt.id, tt.typ, got, tt.want)
			}
		})
	}
}

func TestBuildNotificationWildcard(t *testing.T) {
	if got := BuildNotificationWildcard("", 9); got != "facade.notify.9.>" {
		t.Errorf("BuildNotificationWildcard = %q", got)
	}
}
