package gitexec

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    FailureKind
	}{
		{
			name:    "http 401",
			message: "remote: HTTP Basic: Access denied. The provided password or token is incorrect (401)",
			want:    FailureAuth,
		},
		{
			name:    "http 403",
			message: "The requested URL returned error: 403",
			want:    FailureAuth,
		},
		{
			name:    "textual authentication signal",
			message: "fatal: Authentication failed for 'https://github.com/org/repo.git/'",
			want:    FailureAuth,
		},
		{
			name:    "ssh publickey rejection",
			message: "git@github.com: Permission denied (publickey).",
			want:    FailureAuth,
		},
		{
			name:    "dns failure",
			message: "fatal: unable to access 'https://github.com/a/b/': Could not resolve host: github.com",
			want:    FailureNetwork,
		},
		{
			name:    "connection refused",
			message: "ssh: connect to host github.com port 22: Connection refused",
			want:    FailureNetwork,
		},
		{
			name:    "merge conflict",
			message: "CONFLICT (content): Merge conflict in main.go\nAutomatic merge failed; fix conflicts and then commit the result.",
			want:    FailureConflict,
		},
		{
			name:    "non-fast-forward rejection",
			message: "! [rejected] main -> main (non-fast-forward)\nerror: failed to push some refs",
			want:    FailureNonFastForward,
		},
		{
			name:    "rejected fetch first",
			message: "Updates were rejected because the remote contains work that you do not have locally",
			want:    FailureNonFastForward,
		},
		{
			name:    "context cancellation",
			message: "context canceled",
			want:    FailureCancelled,
		},
		{
			name:    "empty message",
			message: "",
			want:    FailureUnknown,
		},
		{
			name:    "unrecognized message",
			message: "something completely different went wrong",
			want:    FailureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
