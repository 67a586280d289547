// Package midi drives source properties from MIDI controllers.
//
// Inbound messages are decoded into normalized Events and queued on a
// Receiver, from any goroutine. The control path pumps the queue with
// Receiver.Dispatch, which hands every event to the Bindings registered
// for its (channel, signal, parameter) target.
//
// A Binding scales each event into the bounds of its property and, while
// the network is prepared, sends the value to every context module in one
// transaction. The last Access job carries the back-propagation callback:
// once the realtime side has applied the value, the control-side cache is
// updated and property observers see the transaction's commit stamp.
package midi
