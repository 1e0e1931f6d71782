// Package hostvmtest provides an in-memory hostvm.Store and hostvm.Func
// fakes for tests that exercise codec, client, serve, and polyfill without a
// real guest VM.
package hostvmtest
