// Package taskrunner hosts the shared glue for running maidfile tasks. It
// loads the maidfile once, wires the build cache, shell executor and remote
// dispatcher into an executor, and exposes the `Runner` interface plus helpers
// (`Factory`, `Resolve`) so CLI packages can swap in fakes during tests.
package taskrunner
