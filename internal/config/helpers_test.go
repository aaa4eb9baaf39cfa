package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvOrFlag(t *testing.T) {
	const key = "PULSE_CFG_STR"
	tests := []struct {
		name, env, flag, def, want string
	}{
		{name: "env wins", env: "  env  ", flag: "flag", def: "def", want: "env"},
		{name: "flag when env blank", env: "   ", flag: " flag ", def: "def", want: "flag"},
		{name: "default last", env: "", flag: "", def: "def", want: "def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.env)
			if got := FromEnvOrFlag(key, tt.flag, tt.def); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromEnvOrFlagInt(t *testing.T) {
	const key = "PULSE_CFG_INT"
	tests := []struct {
		name string
		env  string
		flag int
		want int
	}{
		{name: "env wins", env: "120", flag: 7, want: 120},
		{name: "env below min falls to flag", env: "0", flag: 7, want: 7},
		{name: "env garbage falls to flag", env: "lots", flag: 7, want: 7},
		{name: "flag below min falls to default", flag: -2, want: 60},
		{name: "unset flag is default", want: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.env)
			if got := FromEnvOrFlagInt(key, tt.flag, 60, 1); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromEnvOrFlagSeconds(t *testing.T) {
	const key = "PULSE_CFG_SECONDS"
	const unset = -1
	def := 5 * time.Second
	tests := []struct {
		name    string
		env     string
		flag    int
		want    time.Duration
		wantErr string
	}{
		{name: "env seconds", env: "3", flag: 9, want: 3 * time.Second},
		{name: "env go syntax", env: "1m", flag: 9, want: time.Minute},
		{name: "env zero disables", env: "0", flag: 9, want: 0},
		{name: "env garbage", env: "often", flag: 9, wantErr: key + ": invalid duration"},
		{name: "flag seconds", flag: 9, want: 9 * time.Second},
		{name: "flag zero is a value", flag: 0, want: 0},
		{name: "unset flag is default", flag: unset, want: def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.env)
			got, err := FromEnvOrFlagSeconds(key, tt.flag, unset, def)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
