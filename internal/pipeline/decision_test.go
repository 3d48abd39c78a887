package pipeline_test

import (
	"testing"

	"curator/internal/pipeline"
)

func TestDecideMatrix(t *testing.T) {
	tests := []struct {
		name      string
		state     pipeline.StoreState
		deep      bool
		want      pipeline.Action
		providers bool
	}{
		{"both stores online", pipeline.StoreState{Record: true, RecordInLibrary: true, File: true}, false, pipeline.ActionConfirm, false},
		{"both stores offline", pipeline.StoreState{Record: true, File: true}, false, pipeline.ActionConfirmOffline, false},
		{"record only", pipeline.StoreState{Record: true, RecordInLibrary: true}, false, pipeline.ActionMaterialize, false},
		{"file only", pipeline.StoreState{File: true}, false, pipeline.ActionBackfill, false},
		{"neither", pipeline.StoreState{}, false, pipeline.ActionFullResolution, true},
		{"deep refresh overrides state", pipeline.StoreState{Record: true, RecordInLibrary: true, File: true}, true, pipeline.ActionFullResolution, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.Decide(tt.state, tt.deep)
			if got != tt.want {
				t.Fatalf("Decide() = %s, want %s", got, tt.want)
			}
			if got.CallsProviders() != tt.providers {
				t.Fatalf("%s.CallsProviders() = %v", got, got.CallsProviders())
			}
		})
	}
}

func TestConfirmWritesNoData(t *testing.T) {
	for _, a := range []pipeline.Action{pipeline.ActionConfirm, pipeline.ActionConfirmOffline} {
		if a.WritesData() {
			t.Fatalf("%s should not write data", a)
		}
	}
	for _, a := range []pipeline.Action{pipeline.ActionMaterialize, pipeline.ActionBackfill, pipeline.ActionFullResolution} {
		if !a.WritesData() {
			t.Fatalf("%s should write data", a)
		}
	}
}
