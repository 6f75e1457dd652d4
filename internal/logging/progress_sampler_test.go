package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "encoding") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_StageChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "probing") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(-1, "probing") {
		t.Error("same stage with indeterminate percent should not log again")
	}
	if !s.ShouldLog(0, "encoding") {
		t.Error("different stage should log")
	}
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{9.9, false},
		{10, true},
		{15, false},
		{35, true},
		{34, false},
		{100, true},
		{100, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, "encoding"); got != step.want {
			t.Fatalf("step %d (%v%%): got %v want %v", i, step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encoding")
	s.Reset()
	if !s.ShouldLog(10, "encoding") {
		t.Error("expected log after reset")
	}
}
