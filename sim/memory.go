package sim

// MemoryMap holds the register contents of the simulated device.
type MemoryMap struct {
	inputRegs   map[uint16]uint16
	holdingRegs map[uint16]uint16
}

// NewMemoryMap creates a new MemoryMap instance.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{
		inputRegs:   make(map[uint16]uint16),
		holdingRegs: make(map[uint16]uint16),
	}
}

// PutInputReg sets the value of an input register in the memory map.
func (mm *MemoryMap) PutInputReg(address uint16, value uint16) {
	mm.inputRegs[address] = value
}

func (mm MemoryMap) GetInputReg(address uint16) (uint16, bool) {
	value, ok := mm.inputRegs[address]
	return value, ok
}

// PutHoldingReg sets the value of a holding register in the memory map.
func (mm *MemoryMap) PutHoldingReg(address uint16, value uint16) {
	mm.holdingRegs[address] = value
}

func (mm MemoryMap) GetHoldingReg(address uint16) (uint16, bool) {
	value, ok := mm.holdingRegs[address]
	return value, ok
}
