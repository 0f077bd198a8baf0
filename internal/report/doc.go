// Package report provides the lifecycle and administrative triage boundary for
// civic-issue reports. It defines the pure transition functions (status,
// priority), the archival policy, the notification builder, the Store and
// Inbox persistence interfaces, and the Service that sequences them.
package report
