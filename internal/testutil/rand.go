package testutil

import "sync"

// ScriptedRand replays fixed draws. Float64 cycles through Floats, IntN
// through Ints (each reduced modulo n). Empty scripts return 0.
type ScriptedRand struct {
	Floats []float64
	Ints   []int

	mu         sync.Mutex
	fi, ii     int
	FloatDraws int
	IntDraws   int
}

func (r *ScriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FloatDraws++
	if len(r.Floats) == 0 {
		return 0
	}
	v := r.Floats[r.fi%len(r.Floats)]
	r.fi++
	return v
}

func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntDraws++
	if len(r.Ints) == 0 || n <= 0 {
		return 0
	}
	v := r.Ints[r.ii%len(r.Ints)] % n
	r.ii++
	return v
}
