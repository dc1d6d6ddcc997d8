// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package workflow loads and runs TOML-defined command sequences.
//
// Workflow files live in ~/.forge/workflows/ and look like:
//
//	name = "build-test"
//	description = "Build and test the project"
//	on_failure = "stop"
//
//	[variables]
//	target = "./..."
//
//	[[steps]]
//	name = "Build"
//	command = "go build ${target}"
//	timeout_secs = 300
//	retries = 1
//
//	[[steps]]
//	name = "Test"
//	command = "go test ${target}"
//
// Steps run in order. Conditions (file_exists, env_set,
// step_succeeded, ...) skip a step without failing the run. Each run
// gets a unique ID for transcript storage.
package workflow
