// Package manager owns the lifecycle of the single expensive model resource behind
// image generation. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, runtime knobs and getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: slot states, Snapshot, the internal handle and load future.
//   - adapter_iface.go: Loader, Invoker and Resource collaborator contracts.
//   - errors.go: error types and helpers (IsResourceUnavailable, IsGenerationFailed).
//   - ensure.go: slot acquisition and single-flight loading.
//   - generate.go: Generate, the only entry point used by front ends.
//   - reclaim.go: idle reclamation and the background loop.
//   - close.go: shutdown, drain and final unload.
//   - events.go, eventpub_memory.go: observability hooks.
//   - status_report.go: Snapshot/Status reporting helpers.
//
// Slot states move unloaded -> loading -> ready -> unloading -> unloaded. Only
// Generate starts a load, and only the reclamation loop or Close unloads.
// Every slot read and write happens under Manager.mu; the Loader, the Invoker
// and Resource.Release always run outside of it.
package manager
