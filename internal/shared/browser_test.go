package shared

import (
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	original := getRuntime
	defer func() { getRuntime = original }()

	tc := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }

			cmd, err := browserCommand("https://example.com")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Args[0] != tt.want {
				t.Errorf("expected %s, got %s", tt.want, cmd.Args[0])
			}
			if cmd.Args[len(cmd.Args)-1] != "https://example.com" {
				t.Errorf("expected url as last argument, got %v", cmd.Args)
			}
		})
	}
}
