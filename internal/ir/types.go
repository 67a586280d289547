package ir

// NetworkSpec describes a network of sources and the connections between
// their channels. It is what the compiler produces, what the store
// persists and what graph.Build turns into a live Network.
type NetworkSpec struct {
	ID          string           `json:"id,omitempty"` // UUIDv7, assigned by the store
	Name        string           `json:"name"`
	Sources     []SourceSpec     `json:"sources"`
	Connections []ConnectionSpec `json:"connections"`
}

// SourceSpec is one source of a network.
type SourceSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // registered type name, e.g. "osc" or "ladspa.amp_mono"
	Properties Object `json:"properties,omitempty"`

	// Network is the embedded child network of a "subnet" source.
	Network *NetworkSpec `json:"network,omitempty"`
}

// ConnectionSpec links an output channel to an input channel.
type ConnectionSpec struct {
	From        string `json:"from"`
	FromChannel string `json:"from_channel"`
	To          string `json:"to"`
	ToChannel   string `json:"to_channel"`
}

// PortShape is the shape of one native plugin port, the part of the port
// metadata that must not change between loads of the same plugin file.
type PortShape struct {
	Name  string  `json:"name"`
	Flags int64   `json:"flags"`
	Hints int64   `json:"hints"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PluginRecord is the persisted metadata of one harvested plugin.
type PluginRecord struct {
	Path      string      `json:"path"`
	Index     int         `json:"index"`
	UniqueID  int64       `json:"unique_id"`
	Label     string      `json:"label"`
	Name      string      `json:"name"`
	Maker     string      `json:"maker"`
	Copyright string      `json:"copyright"`
	TypeName  string      `json:"type_name"`
	Broken    bool        `json:"broken"`
	Reason    string      `json:"reason,omitempty"`
	Signature string      `json:"signature"`
	Ports     []PortShape `json:"ports"`
}
