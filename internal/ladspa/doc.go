// Package ladspa hosts LADSPA plugins as ordinary source types.
//
// A Host scans plugin files: every descriptor index is harvested into a
// PluginInfo (pure metadata, kept for the life of the process), broken
// plugins are recorded with a reason, and every valid plugin is registered
// as a graph type named "ladspa.<label>". After the scan the library is
// closed again.
//
// LIFECYCLE:
//
//	scan     open, harvest, register types, close
//	prepare  Use: reopen and re-validate every port signature of the file
//	context  Use per instance; instantiate, connect ports, activate
//	free     deactivate, cleanup, Unuse (control side, after the Discard)
//	reset    Unuse; the library is closed when no user is left
//
// A file whose ports changed on disk since the scan refuses to load with a
// TYPES_CHANGED PluginError; the type stays registered but cannot
// instantiate.
//
// Native libraries are opened with purego (no cgo) and port buffers live
// in anonymous mmap'd memory, so native code never holds Go pointers.
package ladspa
