package miniserver

// Manufacturer is the device manufacturer reported in registry entries.
const Manufacturer = "Loxone"

// ConnectionNetworkMAC identifies a MAC-style network connection tuple
// in a registry entry.
const ConnectionNetworkMAC = "mac"

// Registry entry kinds.
const (
	RegistryKindHost       = "host"
	RegistryKindMiniserver = "miniserver"
)

// identifierDomain scopes registry identifiers to this integration.
const identifierDomain = "loxone"

// RegistryEntry describes one device for the host's device registry.
// Entries are published on the discovery topics; the host registry is a
// downstream consumer outside this bridge.
type RegistryEntry struct {
	// Kind distinguishes the network host entry from the miniserver
	// logical device entry.
	Kind string `json:"kind"`

	// Connections holds (type, value) connection tuples, e.g.
	// ("mac", "192.168.1.50") for the network host.
	Connections [][2]string `json:"connections,omitempty"`

	// Identifiers holds (domain, id) identity tuples, e.g.
	// ("loxone", "504F94A00000").
	Identifiers [][2]string `json:"identifiers,omitempty"`

	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
	Model        string `json:"model,omitempty"`
}

// RegistryEntries builds the two registry entries for this session: one
// for the network host (identified by its connection tuple) and one for
// the Miniserver logical device (identified by serial, carrying name,
// manufacturer, software version, and classified model).
//
// Identity fields that are absent from the structure document are simply
// omitted from the entry.
func (m *Manager) RegistryEntries() []RegistryEntry {
	host := RegistryEntry{
		Kind:        RegistryKindHost,
		Connections: [][2]string{{ConnectionNetworkMAC, m.cfg.Host}},
	}

	device := RegistryEntry{
		Kind:         RegistryKindMiniserver,
		Manufacturer: Manufacturer,
	}
	if serial, ok := m.Serial(); ok {
		device.Identifiers = [][2]string{{identifierDomain, serial}}
	}
	if name, ok := m.Name(); ok {
		device.Name = name
	}
	if version, ok := m.SoftwareVersion(); ok {
		device.SWVersion = version
	}
	if model, ok := m.Model(); ok {
		device.Model = model
	}

	return []RegistryEntry{host, device}
}
