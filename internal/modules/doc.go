// Package modules provides the built-in source types: signal generators,
// processors, the master sink and the virtual port and sub-network kinds
// that compose networks.
//
// Types are registered by name into a graph.TypeRegistry:
//
//	const   constant value
//	osc     sine/saw/square/triangle oscillator
//	amp     amplifier with a volume property
//	mixer   summing joint input
//	sink    mixes its inputs into the engine master bus
//	iport   virtual input port of a sub-network
//	oport   virtual output port of a sub-network
//	subnet  embeds a child network, wired through virtual ports
package modules
