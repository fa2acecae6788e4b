// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package coordinator reconciles the three ways a round starts or ends.

# Triggers

Manual: StartManual records the caller as starter. EndManual succeeds for
the starter or an administrator.

Scheduled: Run registers two daily cron jobs in the configured time zone,
the close at the configured time and the open a few seconds later
(OpenDelay, 10s by default):

	0 0 17 * * *    close
	10 0 17 * * *   open

A scheduled close needs no authorization and also ends manual rounds.
Fires are not backfilled; a fire missed while the process was down is
skipped.

Bootstrap: on start Run asks the machine for a bootstrap open. Until any
round has opened, a non-empty roster gets one straight away. Every
successful open sets the persistent flag, so afterwards bootstrap is a
no-op and rounds follow the schedule.

# Duplicate Fires

Scheduled fires claim a key (kind plus calendar day) in a FireGuard before
touching the machine. MemoryGuard covers a single process; RedisGuard uses
SET NX so several instances sharing one database fire once.

# Notifications

Every message is sent after the state change has committed. Jobs are
queued in commit order and run one at a time on detached goroutines, so
channel posts never interleave: a round's banner always precedes its
gallery. Within a job, per-member deliveries fan out through an errgroup
with a concurrency limit; each failure is logged and the rest continue.
Wait blocks until the queue is drained, which the process does on
shutdown.
*/
package coordinator
