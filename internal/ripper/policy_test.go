package ripper

import (
	"testing"

	"discripper/internal/config"
	"discripper/internal/services/makemkv"
	"discripper/internal/store"
)

func TestRipWithMakeMKVDecisionTable(t *testing.T) {
	tests := []struct {
		name      string
		discType  store.DiscType
		ripper    config.Ripper
		protected bool
		want      bool
	}{
		{"bluray always", store.DiscBluray, config.Ripper{RipMethod: config.RipMethodMKV, MainFeature: true}, false, true},
		{"bluray backup", store.DiscBluray, config.Ripper{RipMethod: config.RipMethodBackup}, false, true},
		{"dvd mkv without main feature", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodMKV}, false, true},
		{"dvd mkv with main feature", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodMKV, MainFeature: true}, false, false},
		{"dvd backup method", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodBackup}, false, false},
		{"dvd skip transcode", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodBackup, MainFeature: true, SkipTranscode: true}, false, true},
		{"dvd copy protection overrides", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodBackup, MainFeature: true}, true, true},
		{"backup_dvd", store.DiscDVD, config.Ripper{RipMethod: config.RipMethodBackupDVD, MainFeature: true}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &store.Job{DiscType: tt.discType}
			if got := RipWithMakeMKV(job, tt.ripper, tt.protected); got != tt.want {
				t.Fatalf("RipWithMakeMKV = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRipDecisionChecksProtectionFirst(t *testing.T) {
	_, reason := ripDecision(store.DiscDVD, config.Ripper{RipMethod: config.RipMethodBackupDVD}, true)
	if reason != "dvd copy protection detected" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestRipMode(t *testing.T) {
	tests := []struct {
		discType store.DiscType
		method   string
		want     makemkv.Mode
	}{
		{store.DiscBluray, config.RipMethodBackup, makemkv.ModeBackup},
		{store.DiscBluray, config.RipMethodBackupDVD, makemkv.ModeMKV},
		{store.DiscDVD, config.RipMethodBackupDVD, makemkv.ModeBackup},
		{store.DiscDVD, config.RipMethodMKV, makemkv.ModeMKV},
	}
	for _, tt := range tests {
		if got := ripMode(tt.discType, tt.method); got != tt.want {
			t.Errorf("ripMode(%s, %s) = %s, want %s", tt.discType, tt.method, got, tt.want)
		}
	}
}

func TestWithinLength(t *testing.T) {
	tests := []struct {
		seconds, min, max int
		want              bool
	}{
		{600, 600, 7200, true},
		{7200, 600, 7200, true},
		{599, 600, 7200, false},
		{7201, 600, 7200, false},
		{30, 0, 0, true},
		{99999, 600, 0, true},
	}
	for _, tt := range tests {
		if got := withinLength(tt.seconds, tt.min, tt.max); got != tt.want {
			t.Errorf("withinLength(%d, %d, %d) = %v", tt.seconds, tt.min, tt.max, got)
		}
	}
}

func TestLibraryType(t *testing.T) {
	if libraryType(store.VideoMovie) != "movies" || libraryType(store.VideoSeries) != "tv" || libraryType(store.VideoUnknown) != "unidentified" {
		t.Fatal("unexpected library folders")
	}
}
