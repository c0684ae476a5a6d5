// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

/*
Package store implements the durable key/collection store on BadgerDB.

Layout inside one Badger database:

	item:<collection>:<id>  one JSON envelope per stored item
	idx:<collection>        ordered id list (insertion order)
	seq:<collection>        monotonic integer sequence for id assignment
	cfg:<key>               flat configuration namespace

Two in-memory layers accelerate reads: a TTL shadow cache for item payloads
and an index mirror for List. Both are performance shadows — BadgerDB alone
is the source of truth, and Open rebuilds both mirrors before the store
serves its first read. Item and index mutations always share one Badger
transaction, so readers cannot observe a put or delete half-applied.

On top of the raw store, EventStore, RuleStore, and ChannelStore provide
typed access to the audit_events, alert_rules, and alert_channels
collections, including save-time validation and integer id assignment.
*/
package store
