package delivery

// Reservoir holds the fuel that keeps the dispatch gate open. The gate only
// changes state when ConsumeInterval runs on its interval.
type Reservoir struct {
	fuel        int
	perInterval int
	every       uint64
	open        bool
}

func NewReservoir(everyTicks, perInterval int) *Reservoir {
	if everyTicks <= 0 {
		everyTicks = 1
	}
	if perInterval < 0 {
		perInterval = 0
	}
	return &Reservoir{every: uint64(everyTicks), perInterval: perInterval}
}

func (r *Reservoir) Add(units int) {
	if units > 0 {
		r.fuel += units
	}
}

func (r *Reservoir) Fuel() int { return r.fuel }

func (r *Reservoir) Open() bool { return r.open }

// ConsumeInterval burns one interval's worth of fuel when nowTick falls on the
// interval. A shortfall closes the gate without consuming anything.
func (r *Reservoir) ConsumeInterval(nowTick uint64) bool {
	if nowTick%r.every != 0 {
		return false
	}
	if r.fuel >= r.perInterval {
		r.fuel -= r.perInterval
		r.open = true
	} else {
		r.open = false
	}
	return true
}

// Close shuts the gate until the next successful interval.
func (r *Reservoir) Close() { r.open = false }

type ReservoirState struct {
	Fuel int
	Open bool
}

func (r *Reservoir) Export() ReservoirState { return ReservoirState{Fuel: r.fuel, Open: r.open} }

func (r *Reservoir) Import(st ReservoirState) {
	r.fuel = max(st.Fuel, 0)
	r.open = st.Open
}
