// Package graph implements the control-side model of a synthesis network:
// Sources with channels and properties, the per-source context registry,
// the per-network virtual port registry and the type registry.
//
// A Source never renders audio itself. For every context of a prepared
// network its Kind builds realtime modules (engine.Module) and hands them
// to the engine through a transaction:
//
//	CreateContext  -> Integrate jobs, registry entries
//	ConnectContext -> Connect/JConnect jobs between upstream and downstream
//	                  modules, virtual port bindings
//	DismissContext -> Disconnect jobs for every input the source wired,
//	                  then Discard jobs, registry entries dropped
//
// Networks dismiss their sources consumer-first, so inside one transaction
// every Disconnect of a downstream input precedes the Discard of the
// module feeding it.
//
// Property writes on a prepared network never touch module memory. The
// control-side cache is updated and the new value travels to every
// context's control module as an Access job; PropertyObservers learn about
// the change together with the commit stamp that carries it.
package graph
