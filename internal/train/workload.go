package train

import (
	"math"
	"runtime"
)

// MinPerWorker is the smallest shard the automatic thread count will create.
const MinPerWorker = 100

// Range is a half-open interval [Low, High) of training records.
type Range struct {
	Low  int
	High int
}

// Len returns the number of records in the range.
func (r Range) Len() int { return r.High - r.Low }

// Workload is the partition of a training set among workers. Accelerator
// shards come first, then CPU shards; together they cover [0, count) without
// gaps or overlap.
type Workload struct {
	Accelerator []Range
	CPU         []Range
}

// Ranges returns every shard in record order.
func (w Workload) Ranges() []Range {
	return append(append([]Range(nil), w.Accelerator...), w.CPU...)
}

// DetermineWorkload splits count records among CPU and accelerator workers.
//
// threads == 0 picks the number of CPUs, plus one when there are several, and
// then limits it so that every CPU shard holds at least MinPerWorker records.
// An explicit thread count is used as given. Each accelerator shard receives
// ratio times the records of a CPU shard (ratio <= 0 means 1). No shard is
// ever empty, so fewer workers than requested may be returned for tiny sets.
func DetermineWorkload(threads, accelerators, count int, ratio float64) Workload {
	if count <= 0 {
		return Workload{}
	}

	cpu := threads
	if cpu <= 0 {
		cpu = runtime.NumCPU()
		if cpu > 1 {
			cpu++
		}
		cpu = min(cpu, max(1, count/MinPerWorker))
	}
	cpu = min(cpu, count)

	if ratio <= 0 {
		ratio = 1
	}
	acc := min(max(accelerators, 0), count-cpu)

	accTotal := 0
	if acc > 0 {
		units := float64(cpu) + float64(acc)*ratio
		accTotal = int(math.Round(float64(count) * float64(acc) * ratio / units))
		accTotal = min(max(accTotal, acc), count-cpu)
	}

	return Workload{
		Accelerator: split(0, accTotal, acc),
		CPU:         split(accTotal, count, cpu),
	}
}

// split divides [low, high) into parts contiguous ranges whose sizes differ by at most one.
func split(low, high, parts int) []Range {
	if parts <= 0 {
		return nil
	}
	size := high - low
	base, extra := size/parts, size%parts

	ranges := make([]Range, parts)
	for i := range ranges {
		n := base
		if i < extra {
			n++
		}
		ranges[i] = Range{Low: low, High: low + n}
		low += n
	}
	return ranges
}
