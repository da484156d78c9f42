package games

import "testing"

func TestNormalizeWinePath(t *testing.T) {
	tests := map[string]string{
		`Z:\home\user\Games\hl.exe`: "/home/user/Games/hl.exe",
		"/usr/bin/steam":             "/usr/bin/steam",
		"":                           "",
	}
	for in, want := range tests {
		if got := normalizeWinePath(in); got != want {
			t.Errorf("normalizeWinePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunningInPath(t *testing.T) {
	procs := []processInfo{
		{name: "bash", exe: "/usr/bin/bash"},
		{name: "wine64", exe: "/usr/bin/wine64", cmdline: `Z:\games\common\Portal 2\portal2.exe -novid`},
		{name: "hl2_linux", exe: "/games/common/Half-Life 2/hl2_linux"},
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/games/common/Portal 2", true},
		{"/games/common/Half-Life 2", true},
		{"/games/common/Dota 2", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := runningInPath(procs, tt.path); got != tt.want {
			t.Errorf("runningInPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSteamRunning(t *testing.T) {
	if steamRunning([]processInfo{{name: "bash"}, {name: "steamwebhelper"}}) {
		t.Error("helper processes alone do not count as the client")
	}
	if !steamRunning([]processInfo{{name: "bash"}, {name: "steam"}}) {
		t.Error("steam process not detected")
	}
	if !steamRunning([]processInfo{{exe: "/home/user/.steam/ubuntu12_32/steam"}}) {
		t.Error("steam executable not detected")
	}
}
