// Package testutil provides in-memory LADSPA libraries for tests.
//
// FakeLoader implements ladspa.Loader over a map of paths to FakeLibrary
// values, so plugin scanning, loading and instantiation run without any
// native code. Replacing a path with Put simulates a plugin file that
// changed on disk between scans.
package testutil
