package host

import (
	"errors"
	"testing"
)

func TestNewGitHubClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		repository string
		wantErr    error
	}{
		{"empty token", "", "owner/repo", ErrEmptyToken},
		{"empty repository", "tok", "", ErrInvalidRepo},
		{"missing slash", "tok", "ownerrepo", ErrInvalidRepo},
		{"too many parts", "tok", "a/b/c", ErrInvalidRepo},
		{"blank owner", "tok", " /repo", ErrInvalidRepo},
		{"valid", "tok", "owner/repo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewGitHubClient(tt.token, tt.repository)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.owner != "owner" || client.repo != "repo" {
				t.Errorf("unexpected parse: %s/%s", client.owner, client.repo)
			}
		})
	}
}

func TestReleaseTitle(t *testing.T) {
	client, err := NewGitHubClient("tok", "acme/appliance-builder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := client.ReleaseTitle("v1.0.2-ce")
	if got != "Appliance Builder v1.0.2-ce" {
		t.Errorf("unexpected title %q", got)
	}
}
