// Package reconciler syncs provider message histories into conversations.
//
// Each tick selects recent conversations that are still open or missing a
// transcript or outcome, appends new messages to the conversation event log,
// infers an outcome from what the donor said and moves the conversation
// forward through initiated, in_progress and completed.
package reconciler
