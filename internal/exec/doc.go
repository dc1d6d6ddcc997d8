// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exec runs shell commands on behalf of the exec, shell, and
// workflow commands, with risk assessment in front of every execution.
//
// Commands are classified Safe through Critical by SafetyChecker.
// Safe and Low run immediately. Medium and High go through the
// Executor's Confirm hook. Critical is refused when BlockCritical is
// set, which is the default.
//
// Execution goes through the platform shell with a bounded timeout
// and capped output capture.
package exec
