// Package beacon implements the asynchronous random beacon protocol:
// batched weak verifiable secret sharing carried inside Cachin-Tessaro
// reliable broadcast, the Gather witness protocol, Bundled Binary
// Approximate Agreement, and weighted beacon reconstruction.
package beacon

// IgnoreRound is the in-band "ignore round" marker (spec.md §6).
// Context.ProcessEnvelope drops any envelope carrying it; no message
// this module sends uses it.
const IgnoreRound uint32 = 25000
