package voxel

// Template identifies an item kind independent of count: the item id plus any
// auxiliary data (enchantments, tags) in canonical string form.
type Template struct {
	Item string
	Tag  string
}

func (t Template) IsZero() bool { return t.Item == "" }

func (t Template) String() string {
	if t.Tag == "" {
		return t.Item
	}
	return t.Item + "{" + t.Tag + "}"
}

type ItemStack struct {
	Template
	Count int
}

func Stack(item string, count int) ItemStack {
	return ItemStack{Template: Template{Item: item}, Count: count}
}

func (s ItemStack) Empty() bool { return s.Item == "" || s.Count <= 0 }

func (s ItemStack) WithCount(n int) ItemStack {
	s.Count = n
	return s
}

// Inventory is a fixed-size slot container (chest, interface buffer).
type Inventory struct {
	Slots []ItemStack
}

func NewInventory(size int) *Inventory {
	if size < 0 {
		size = 0
	}
	return &Inventory{Slots: make([]ItemStack, size)}
}

func (inv *Inventory) Size() int { return len(inv.Slots) }

func (inv *Inventory) Count(t Template) int {
	n := 0
	for _, s := range inv.Slots {
		if !s.Empty() && s.Template == t {
			n += s.Count
		}
	}
	return n
}

// HasPartial reports whether some slot holds t below maxStack.
func (inv *Inventory) HasPartial(t Template, maxStack int) bool {
	for _, s := range inv.Slots {
		if !s.Empty() && s.Template == t && s.Count < maxStack {
			return true
		}
	}
	return false
}

func (inv *Inventory) HasEmpty() bool {
	for _, s := range inv.Slots {
		if s.Empty() {
			return true
		}
	}
	return false
}

// TopOff adds to existing stacks of the same template up to maxStack and
// returns what did not fit.
func (inv *Inventory) TopOff(st ItemStack, maxStack int) ItemStack {
	for i := range inv.Slots {
		if st.Count <= 0 {
			break
		}
		s := &inv.Slots[i]
		if s.Empty() || s.Template != st.Template || s.Count >= maxStack {
			continue
		}
		n := min(maxStack-s.Count, st.Count)
		s.Count += n
		st.Count -= n
	}
	return st
}

// FillEmpty places the stack into empty slots, maxStack per slot, and returns
// what did not fit.
func (inv *Inventory) FillEmpty(st ItemStack, maxStack int) ItemStack {
	for i := range inv.Slots {
		if st.Count <= 0 {
			break
		}
		if !inv.Slots[i].Empty() {
			continue
		}
		n := min(maxStack, st.Count)
		inv.Slots[i] = st.WithCount(n)
		st.Count -= n
	}
	return st
}

// Insert tops off existing stacks first and then fills empty slots.
func (inv *Inventory) Insert(st ItemStack, maxStack int) ItemStack {
	if st.Empty() {
		return st
	}
	st = inv.TopOff(st, maxStack)
	return inv.FillEmpty(st, maxStack)
}

// Take removes up to n items of t and returns how many were removed.
func (inv *Inventory) Take(t Template, n int) int {
	taken := 0
	for i := range inv.Slots {
		if taken >= n {
			break
		}
		s := &inv.Slots[i]
		if s.Empty() || s.Template != t {
			continue
		}
		k := min(s.Count, n-taken)
		s.Count -= k
		taken += k
		if s.Count <= 0 {
			inv.Slots[i] = ItemStack{}
		}
	}
	return taken
}
