// Package compiler turns CUE network definitions into ir.NetworkSpec values.
//
// A definition file declares networks under the top-level "network" field:
//
//	network: voice: {
//		sources: {
//			osc: {type: "osc", properties: {freq: 220, wave: "saw"}}
//			amp: {type: "amp", properties: volume: 0.5}
//			out: type: "sink"
//		}
//		connections: [
//			"osc.out -> amp.in",
//			{from: "amp.out", to: "out.left"},
//		]
//	}
//
// Sources keep their declaration order. A "subnet" source carries its child
// network inline under "network". CompileNetwork reports the first problem
// as a *CompileError with its CUE position; Validate then checks the
// structure of the result without consulting the type registry.
package compiler
