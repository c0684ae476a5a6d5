// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package config loads the application configuration from layered
// sources: built-in defaults, an optional YAML file, and
// AUDITSTREAM_* environment variables, in rising precedence.
package config
