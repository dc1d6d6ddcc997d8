// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exec

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// COMMAND RISK ASSESSMENT
// =============================================================================

// RiskLevel classifies how dangerous a command is.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CommandRisk is the outcome of assessing one command.
type CommandRisk struct {
	Level       RiskLevel
	Reason      string
	Suggestions []string
}

// dangerousPatterns are substrings that mark a command as critical
// regardless of anything else in it.
var dangerousPatterns = []string{
	"rm -rf",
	"rm -r",
	"sudo rm",
	"del /s",
	"format c:",
	"fdisk /mbr",
	"mkfs.",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"> /dev/",
	"chmod 000",
	"chmod -r 000",
	"chown root",
	"chown -r root",
	"init 0",
	"init 6",
	"killall -9",
	"pkill -9",
	":(){ :|:& };:",
	"curl | sh",
	"wget | sh",
	"curl | bash",
	"wget | bash",
	"curl|sh",
	"wget|sh",
	"curl|bash",
	"wget|bash",
}

// destructiveCommands get a closer look at their arguments.
var destructiveCommands = map[string]bool{
	"rm":        true,
	"del":       true,
	"format":    true,
	"fdisk":     true,
	"mkfs":      true,
	"dd":        true,
	"shutdown":  true,
	"reboot":    true,
	"halt":      true,
	"poweroff":  true,
	"systemctl": true,
}

// systemPaths are directories no command should be touching.
var systemPaths = []string{
	"/bin",
	"/sbin",
	"/usr/bin",
	"/usr/sbin",
	"/boot",
	"/dev",
	"/etc",
	"/proc",
	"/sys",
	`c:\windows`,
	`c:\program files`,
	`c:\system32`,
}

// SafetyChecker assesses shell commands before execution. An optional
// allowlist restricts execution to pre-approved base commands.
type SafetyChecker struct {
	allowed map[string]bool
}

// NewSafetyChecker creates a checker with no allowlist.
func NewSafetyChecker() *SafetyChecker {
	return &SafetyChecker{}
}

// WithAllowedCommands restricts the checker to the given base commands.
// An empty list leaves the checker unrestricted.
func (s *SafetyChecker) WithAllowedCommands(commands []string) *SafetyChecker {
	if len(commands) == 0 {
		return s
	}
	s.allowed = make(map[string]bool, len(commands))
	for _, c := range commands {
		s.allowed[c] = true
	}
	return s
}

// Assess classifies a command and explains the classification.
func (s *SafetyChecker) Assess(command string) CommandRisk {
	lower := strings.ToLower(command)
	parts := strings.Fields(command)

	if len(parts) == 0 {
		return CommandRisk{
			Level:       RiskSafe,
			Reason:      "empty command",
			Suggestions: []string{"specify a command to execute"},
		}
	}
	base := parts[0]

	if s.allowed != nil && !s.allowed[base] {
		return CommandRisk{
			Level:  RiskHigh,
			Reason: fmt.Sprintf("command %q is not in the allowed list", base),
			Suggestions: []string{
				"only pre-approved commands are allowed in this environment",
				"allowed commands: " + strings.Join(s.allowedList(), ", "),
			},
		}
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return CommandRisk{
				Level:  RiskCritical,
				Reason: fmt.Sprintf("contains dangerous pattern: %s", pattern),
				Suggestions: []string{
					"this command could cause irreversible damage",
					"have backups before running destructive commands",
				},
			}
		}
	}

	if destructiveCommands[base] {
		if risk := assessDestructive(command, parts); risk.Level != RiskSafe {
			return risk
		}
	}

	for _, sysPath := range systemPaths {
		if strings.Contains(lower, sysPath) {
			return CommandRisk{
				Level:  RiskHigh,
				Reason: fmt.Sprintf("touches system path: %s", sysPath),
				Suggestions: []string{
					"modifying system paths can break the machine",
				},
			}
		}
	}

	if hasNetworkRisk(lower) {
		return CommandRisk{
			Level:  RiskMedium,
			Reason: "command downloads and executes content from the network",
			Suggestions: []string{
				"download and inspect the script before executing it",
			},
		}
	}

	if strings.HasPrefix(lower, "sudo ") || strings.Contains(lower, " sudo ") {
		return CommandRisk{
			Level:  RiskMedium,
			Reason: "command requires elevated privileges",
			Suggestions: []string{
				"try running without sudo first if possible",
			},
		}
	}

	if strings.Contains(lower, " -r") || strings.Contains(lower, " --recursive") {
		return CommandRisk{
			Level:  RiskLow,
			Reason: "command performs recursive operations",
			Suggestions: []string{
				"test on a small subset before running over a large tree",
			},
		}
	}

	return CommandRisk{Level: RiskSafe, Reason: "command appears safe"}
}

// IsAllowed reports whether a command can run without confirmation.
func (s *SafetyChecker) IsAllowed(command string) bool {
	level := s.Assess(command).Level
	return level == RiskSafe || level == RiskLow
}

func (s *SafetyChecker) allowedList() []string {
	out := make([]string, 0, len(s.allowed))
	for c := range s.allowed {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func assessDestructive(command string, parts []string) CommandRisk {
	switch parts[0] {
	case "rm":
		for _, arg := range parts[1:] {
			if arg == "-rf" || arg == "-r" || arg == "-fr" {
				return CommandRisk{
					Level:  RiskCritical,
					Reason: "recursive file deletion",
					Suggestions: []string{
						"double-check the target path",
						"make sure you have backups",
					},
				}
			}
			if strings.HasPrefix(arg, "/") && len(arg) < 4 {
				return CommandRisk{
					Level:  RiskCritical,
					Reason: "deleting system root directories",
					Suggestions: []string{
						"never delete root system directories",
					},
				}
			}
		}
		return CommandRisk{
			Level:       RiskLow,
			Reason:      "file deletion command",
			Suggestions: []string{"verify the target files"},
		}

	case "dd":
		if strings.Contains(command, "/dev/") {
			return CommandRisk{
				Level:  RiskCritical,
				Reason: "direct disk access with dd",
				Suggestions: []string{
					"wrong devices here destroy all data on the disk",
				},
			}
		}
		return CommandRisk{
			Level:       RiskMedium,
			Reason:      "data copying with dd",
			Suggestions: []string{"verify source and destination paths"},
		}

	case "shutdown", "reboot", "halt", "poweroff":
		return CommandRisk{
			Level:       RiskMedium,
			Reason:      "system power control",
			Suggestions: []string{"save your work before proceeding"},
		}

	case "systemctl":
		for _, arg := range parts[1:] {
			if arg == "stop" || arg == "disable" || arg == "mask" {
				return CommandRisk{
					Level:  RiskHigh,
					Reason: "stopping or disabling system services",
					Suggestions: []string{
						"understand the service before touching it",
					},
				}
			}
		}
		return CommandRisk{
			Level:       RiskLow,
			Reason:      "system service management",
			Suggestions: []string{"review the service and action"},
		}
	}

	return CommandRisk{Level: RiskSafe, Reason: "standard command usage"}
}

func hasNetworkRisk(lower string) bool {
	if !strings.Contains(lower, "curl") && !strings.Contains(lower, "wget") {
		return false
	}
	return strings.Contains(lower, "| sh") || strings.Contains(lower, "| bash") ||
		strings.Contains(lower, "|sh") || strings.Contains(lower, "|bash")
}

// =============================================================================
// PATH SAFETY
// =============================================================================

var dangerousWritePaths = []string{
	"/", "/bin", "/sbin", "/boot", "/dev", "/etc", "/proc", "/sys",
	"/usr/bin", "/usr/sbin", "/var/log", "/var/lib",
}

// IsSafePath reports whether a path is acceptable as a write target.
// System directories and traversal sequences are rejected.
func IsSafePath(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	for _, dangerous := range dangerousWritePaths {
		if path == dangerous || strings.HasPrefix(path, dangerous+"/") {
			return false
		}
	}
	return true
}
