package types

// Device represents a compute device reported by hashcat -I, optionally
// enriched with host information
type Device struct {
	ID      int    `json:"device_id"`
	Name    string `json:"device_name"`
	Type    string `json:"device_type"` // "CPU" or "GPU"
	Backend string `json:"backend,omitempty"`

	Processors  int    `json:"processors,omitempty"`
	Clock       int    `json:"clock,omitempty"`        // MHz
	MemoryTotal int64  `json:"memory_total,omitempty"` // MB
	MemoryFree  int64  `json:"memory_free,omitempty"`  // MB
	PCIAddress  string `json:"pci_address,omitempty"`

	AliasOf int `json:"alias_of,omitempty"` // device ID this one duplicates
}

// IsCPU reports whether hashcat classified the device as a CPU
func (d Device) IsCPU() bool {
	return d.Type == "CPU"
}

// HashType is one entry of hashcat's hash mode table
type HashType struct {
	Mode     int    `json:"mode"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// HostInfo describes the machine the engine runs on
type HostInfo struct {
	CPUModel     string  `json:"cpu_model"`
	CPUMhz       float64 `json:"cpu_mhz"`
	LogicalCores int     `json:"logical_cores"`
	MemoryTotal  int64   `json:"memory_total"` // MB
	MemoryFree   int64   `json:"memory_free"`  // MB
}
