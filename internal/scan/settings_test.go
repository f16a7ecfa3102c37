package scan

import (
	"sync"
	"testing"
)

func TestSettingsReplaceRoundTrip(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}
	next := DefaultSettings()
	next.ConfidenceThreshold = 0.55
	next.EarlyTermination.MinBytes = 4096
	old, applied, err := store.Replace(next)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if old.ConfidenceThreshold != 0.7 {
		t.Fatalf("old confidence threshold = %v, want 0.7", old.ConfidenceThreshold)
	}
	if applied != next {
		t.Fatalf("applied settings differ from requested")
	}
	if got := store.Get(); got != next {
		t.Fatalf("Get after Replace = %+v, want %+v", got, next)
	}
}

func TestSettingsRejectInvalid(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}
	before := store.Get()

	bad := DefaultSettings()
	bad.ConfidenceThreshold = 1.5
	if _, _, err := store.Replace(bad); err == nil {
		t.Fatalf("expected rejection for confidence threshold 1.5")
	}
	bad = DefaultSettings()
	bad.Temperature = 0
	if _, _, err := store.Replace(bad); err == nil {
		t.Fatalf("expected rejection for zero temperature")
	}
	bad = DefaultSettings()
	bad.EarlyTermination.Threshold = -0.1
	if _, _, err := store.Replace(bad); err == nil {
		t.Fatalf("expected rejection for negative termination threshold")
	}

	// A rejected replace must not partially apply.
	if got := store.Get(); got != before {
		t.Fatalf("settings changed after rejected replace: %+v", got)
	}
}

func TestSettingsConcurrentReaders(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}

	// Writers alternate between two internally-consistent settings; readers
	// must only ever observe one of the two, never a mix.
	a := DefaultSettings()
	a.ConfidenceThreshold = 0.2
	a.EarlyTermination.Threshold = 0.25
	b := DefaultSettings()
	b.ConfidenceThreshold = 0.8
	b.EarlyTermination.Threshold = 0.85

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_, _, _ = store.Replace(a)
			} else {
				_, _, _ = store.Replace(b)
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		got := store.Get()
		if got != a && got != b && got != DefaultSettings() {
			t.Errorf("torn read: %+v", got)
			break
		}
	}
	close(stop)
	wg.Wait()
}
