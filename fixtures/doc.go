// Package fixtures holds deliberately faulty stub contracts.
//
// The stubs carry no ledger logic. Each entry point contains a single
// bug-triggering step (overflow, integer division by zero, a loop that never
// terminates, or mutual recursion) so an auditing harness can invoke it by id
// and observe the host fault, the step-limit kill, or the wrapped result.
package fixtures
