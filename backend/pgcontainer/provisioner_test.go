package pgcontainer_test

import (
	"testing"

	"github.com/dogmatiq/pgarena/backend"
	"github.com/dogmatiq/pgarena/backend/pgcontainer"
	"github.com/dogmatiq/pgarena/queue"
)

func TestProvisioner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}

	p := &pgcontainer.Provisioner{}

	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Error(err)
		}
	})

	backend.RunTests(t, p)
}

func BenchmarkProvisioner(b *testing.B) {
	p := &pgcontainer.Provisioner{}

	b.Cleanup(func() {
		if err := p.Close(); err != nil {
			b.Error(err)
		}
	})

	backend.RunBenchmarks(b, p)
}

func BenchmarkQueue(b *testing.B) {
	p := &pgcontainer.Provisioner{}

	b.Cleanup(func() {
		if err := p.Close(); err != nil {
			b.Error(err)
		}
	})

	queue.RunBenchmarks(b, p)
}
