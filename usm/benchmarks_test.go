package usm

import (
	"testing"

	"github.com/gousm/gousm/dtypes"
	"github.com/gousm/gousm/target"
	"github.com/gousm/gousm/usmarray"
	"github.com/janpfeifer/must"
)

var benchSizes = []int{1, 100, 10_000, 1_000_000}

func benchQueue(b *testing.B) *Queue {
	b.Helper()
	cfg := target.DefaultConfig()
	q := must.M1(NewDevice(cfg[target.BackendOffloadGPU], 0).NewQueue())
	b.Cleanup(func() { must.M(q.Destroy()) })
	return q
}

func BenchmarkCopyFromHost(b *testing.B) {
	q := benchQueue(b)
	for _, size := range benchSizes {
		data := make([]float32, size)
		a := must.M1(NewHostArray(data, size))
		buf := must.M1(q.AllocMemory(MemShared, a.SizeBytes()))
		b.Run(a.String(), func(b *testing.B) {
			b.SetBytes(int64(a.SizeBytes()))
			for i := 0; i < b.N; i++ {
				_, _, err := CopyFromHost(buf, a)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
		must.M(buf.Destroy())
	}
}

func BenchmarkRoundTrip(b *testing.B) {
	q := benchQueue(b)
	for _, size := range benchSizes {
		data := make([]float64, size)
		a := must.M1(NewHostArray(data, size))
		out := must.M1(NewHostArray(make([]float64, size), size))
		buf := must.M1(q.AllocMemory(MemShared, a.SizeBytes()))
		b.Run(a.String(), func(b *testing.B) {
			b.SetBytes(int64(2 * a.SizeBytes()))
			for i := 0; i < b.N; i++ {
				if _, _, err := CopyFromHost(buf, a); err != nil {
					b.Fatal(err)
				}
				if err := CopyToHost(buf, out); err != nil {
					b.Fatal(err)
				}
			}
		})
		must.M(buf.Destroy())
	}
}

func BenchmarkLaunchVecAdd(b *testing.B) {
	q := benchQueue(b)
	const n = 10_000
	x := must.M1(NewHostArray(make([]float32, n), n))
	y := must.M1(NewHostArray(make([]float32, n), n))
	zBuf := must.M1(q.AllocMemory(MemShared, n*4))
	z := must.M1(NewDeviceArray(usmarray.New(dtypes.Float32, 1, usmarray.LayoutC), zBuf, n))
	defer func() {
		z.Release()
		must.M(zBuf.Destroy())
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := Launch(q, VecAddF32).Args(x, y, z).GlobalRange(n).LocalRange(100)
		if _, err := cfg.Done(); err != nil {
			b.Fatal(err)
		}
		for _, buf := range cfg.Materialized() {
			must.M(buf.Destroy())
		}
	}
}
