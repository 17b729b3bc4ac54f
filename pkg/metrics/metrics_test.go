package metrics

import "testing"

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()
	m.SessionsStarted.Inc()
	m.RecordResolution(true)
	m.RecordResolution(false)

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "trustvm_hat_sessions_started_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected trustvm_hat_sessions_started_total to be registered")
	}
}
