// Package core holds the subscriber-side WebSub domain: subscription records,
// the store contract, and the verification state machine that answers hub
// callbacks. Persistence, transport and job adapters depend on this package;
// core does not depend on them.
package core
