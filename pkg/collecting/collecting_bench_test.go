package collecting

import (
	"os"
	"testing"
)

func BenchmarkProcstats(b *testing.B) {
	s := NewProcstats("/proc")
	defer s.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Fetch(NodeHandle)
	}
}

func BenchmarkJobproc(b *testing.B) {
	s := NewJobproc("/proc")
	defer s.Close()
	h := Handle(os.Getpid())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Fetch(h)
	}
}

func BenchmarkTemperature(b *testing.B) {
	s := NewTemperature("/sys")
	defer s.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Fetch(NodeHandle)
	}
}

func BenchmarkTaskstats(b *testing.B) {
	s, err := NewTaskstats()
	if err != nil {
		b.Skipf("taskstats unavailable: %v", err)
	}
	defer s.Close()
	h := Handle(os.Getpid())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Fetch(h)
	}
}
