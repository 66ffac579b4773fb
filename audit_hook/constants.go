package audithook

// Action constants for audit events.
const (
	// Deployment actions
	ActionContractDeployed = "contract.deployed"
	ActionContractRestored = "contract.restored"

	// Invocation actions
	ActionInvocationApplied = "invocation.applied"
	ActionInvocationSkipped = "invocation.skipped"
	ActionArithmeticWrapped = "arithmetic.wrapped"
	ActionReentered         = "invocation.reentered"

	// Value actions
	ActionTransferPaid   = "transfer.paid"
	ActionTransferUnpaid = "transfer.unpaid"

	// Transaction actions
	ActionTransactionCommitted = "transaction.committed"
	ActionTransactionAborted   = "transaction.aborted"
)

// Resource constants for audit events.
const (
	ResourceContract    = "contract"
	ResourceInvocation  = "invocation"
	ResourceTransfer    = "transfer"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryDeployment = "deployment"
	CategoryExecution  = "execution"
	CategoryValue      = "value"
	CategoryFault      = "fault"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
