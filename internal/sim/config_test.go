package sim

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/optvis/internal/step"
)

func TestValidateReportsFirstParamInOrder(t *testing.T) {
	cfg := testConfig(step.AlgAdam)
	cfg.Params = step.Params{StepSize: 50, Beta1: 0.1, Beta2: 0.1}
	cfg.UpdateInterval = 5 * time.Second

	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), KeyStepSize) {
			t.Fatalf("attempt %d: expected the %s error, got %v", i, KeyStepSize, err)
		}
	}

	cfg.Params.StepSize = 0.1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), KeyBeta1) {
		t.Errorf("expected the %s error, got %v", KeyBeta1, err)
	}
}

func TestConfigJSONIntervalInSeconds(t *testing.T) {
	cfg := testConfig(step.AlgNewton)
	cfg.UpdateInterval = 290 * time.Millisecond

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["updateInterval"] != 0.29 {
		t.Errorf("updateInterval = %v, want 0.29 seconds", raw["updateInterval"])
	}

	var back Config
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != cfg {
		t.Errorf("round trip\n got %+v\nwant %+v", back, cfg)
	}
}

func TestConfigJSONInsideStruct(t *testing.T) {
	type wrapper struct {
		ID     string `json:"id"`
		Config Config `json:"config"`
	}
	in := wrapper{ID: "x", Config: testConfig(step.AlgGradient)}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"updateInterval":0.1`) {
		t.Errorf("unexpected encoding %s", data)
	}
	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip got %+v", out)
	}
}
