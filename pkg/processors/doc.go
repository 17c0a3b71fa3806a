// Package processors defines the Processor interface and the shared
// machinery concrete processors are built on: a Router mapping commands to
// actions, a Base that enforces idempotency and instrumentation around action
// handlers, a Registry, and a SpecReader for typed access to task specs.
//
// Concrete processors live in sub-packages (cliinput, download, writefile,
// shellscript).
package processors
