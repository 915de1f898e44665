// Package worker drains the verification queue. Each queue entry runs a
// fixed sequence for one host: obtain a manifest, refresh opportunistic host
// metadata, evaluate every flavor group through the trust engine, and
// persist a freshly signed report when anything was recomputed. Entries for
// the same host are serialized with a keyed mutex; different hosts verify
// concurrently.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veridian/hvs/pkg/audit"
	"github.com/veridian/hvs/pkg/hostconn"
	"github.com/veridian/hvs/pkg/manifest"
	"github.com/veridian/hvs/pkg/report"
	"github.com/veridian/hvs/pkg/store"
	"github.com/veridian/hvs/pkg/trust"
)

// Agent component names reported in a manifest's installed-components list.
// Their presence drives automatic membership in the matching software group.
const (
	componentTrustAgent    = "tagent"
	componentWorkloadAgent = "wlagent"
)

var componentGroups = map[string]string{
	componentTrustAgent:    "platform_software",
	componentWorkloadAgent: "workload_software",
}

// Worker processes one queue entry at a time against the trust engine.
type Worker struct {
	store     *store.Store
	connector hostconn.Connector
	engine    *trust.Engine
	assembler *report.Assembler
	recorder  *audit.Recorder
	locks     *KeyedMutex
	log       *slog.Logger
}

// New creates a worker. The keyed mutex may be shared across workers in a
// pool so entries for the same host never run concurrently. A nil recorder
// disables audit events; a nil logger falls back to slog.Default.
func New(st *store.Store, connector hostconn.Connector, engine *trust.Engine,
	assembler *report.Assembler, recorder *audit.Recorder, locks *KeyedMutex, logger *slog.Logger) *Worker {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     st,
		connector: connector,
		engine:    engine,
		assembler: assembler,
		recorder:  recorder,
		locks:     locks,
		log:       logger,
	}
}

// Process executes one claimed queue entry to completion and returns the
// terminal state plus an outcome message. It never panics the pool: every
// failure maps to ERROR or TIMEOUT. Entries are not retried; a fresh
// enqueue is required for another attempt.
func (w *Worker) Process(ctx context.Context, entry *store.QueueEntry) (store.QueueState, string) {
	if entry.HostID == "" {
		return store.QueueStateError, "queue entry has no host id"
	}

	unlock := w.locks.Lock(entry.HostID)
	defer unlock()

	exists, err := w.store.HostExists(entry.HostID)
	if err != nil {
		return store.QueueStateError, fmt.Sprintf("failed to resolve host: %v", err)
	}
	if !exists {
		// Host deleted between enqueue and processing. Nothing to verify.
		w.log.Info("skipping verification for removed host", "host_id", entry.HostID)
		return store.QueueStateCompleted, "host no longer registered"
	}
	host, err := w.store.GetHost(entry.HostID)
	if err != nil {
		return store.QueueStateError, fmt.Sprintf("failed to load host: %v", err)
	}

	m, state, err := w.obtainManifest(ctx, host, entry.ForceUpdate)
	if err != nil {
		if statusErr := w.store.AppendHostStatus(host.ID, state, nil); statusErr != nil {
			w.log.Error("failed to record host status", "host_id", host.ID, "error", statusErr)
		}
		w.recorder.Record(audit.NewHostUnreachable(host.ID, string(state), err.Error()))
		w.log.Warn("manifest retrieval failed",
			"host_id", host.ID, "state", string(state), "error", err)

		if state == hostconn.StateConnectionTimeout {
			return store.QueueStateTimeout, fmt.Sprintf("connection timed out: %v", err)
		}
		return store.QueueStateError, fmt.Sprintf("manifest retrieval failed (%s): %v", state, err)
	}

	w.refreshHostMetadata(host, m)

	collective, recomputed, groups, err := w.evaluateGroups(ctx, host.ID, m)
	if err != nil {
		return store.QueueStateError, err.Error()
	}

	if recomputed || entry.ForceUpdate {
		if err := w.generateReport(host.ID, m, collective); err != nil {
			w.recorder.Record(audit.NewVerifyFailed(host.ID, err.Error()))
			return store.QueueStateError, err.Error()
		}
	}

	if err := w.store.AppendHostStatus(host.ID, hostconn.StateConnected, m); err != nil {
		return store.QueueStateError, fmt.Sprintf("failed to record host status: %v", err)
	}

	w.recorder.Record(audit.NewVerifyCompleted(host.ID, collective.Trusted(), groups))
	return store.QueueStateCompleted, fmt.Sprintf("verified %d flavor groups", groups)
}

// obtainManifest returns the manifest to verify against. Without forceUpdate
// the latest CONNECTED snapshot is reused when present, avoiding a live
// connection. The returned state is only meaningful when err is non-nil.
func (w *Worker) obtainManifest(ctx context.Context, host *store.Host, forceUpdate bool) (*manifest.Manifest, hostconn.HostState, error) {
	if !forceUpdate {
		st, err := w.store.LatestHostStatus(host.ID)
		if err != nil {
			return nil, hostconn.StateUnknown, fmt.Errorf("failed to load host status: %w", err)
		}
		if st != nil && st.Manifest != nil {
			w.log.Debug("reusing manifest snapshot", "host_id", host.ID, "collected_at", st.CreatedAt)
			return st.Manifest, hostconn.StateConnected, nil
		}
	}

	m, err := w.connector.GetManifest(ctx, host.ConnectionString, host.TLSPolicy)
	if err != nil {
		return nil, hostconn.Classify(err), err
	}
	return m, hostconn.StateConnected, nil
}

// refreshHostMetadata opportunistically updates the host's hardware UUID and
// its software-group memberships from the manifest. Failures here are logged
// and never abort the entry.
func (w *Worker) refreshHostMetadata(host *store.Host, m *manifest.Manifest) {
	if hw := m.HardwareUUID(); hw != "" && hw != host.HardwareUUID {
		if err := w.store.UpdateHostHardwareUUID(host.ID, hw); err != nil {
			w.log.Error("failed to update hardware UUID", "host_id", host.ID, "error", err)
		} else {
			host.HardwareUUID = hw
		}
	}

	for component, groupName := range componentGroups {
		if !m.HasComponent(component) {
			continue
		}
		g, err := w.store.EnsureGroup(groupName)
		if err != nil {
			w.log.Error("failed to ensure software group", "group", groupName, "error", err)
			continue
		}
		in, err := w.store.HostInGroup(g.ID, host.ID)
		if err != nil || in {
			continue
		}
		if err := w.store.AddHostToGroup(g.ID, host.ID); err != nil {
			w.log.Error("failed to add host to software group",
				"host_id", host.ID, "group", groupName, "error", err)
		}
	}
}

// evaluateGroups runs the trust engine for every group the host belongs to
// and merges the per-group reports. One failing group does not abort its
// siblings; its error is logged and the rest still evaluate.
func (w *Worker) evaluateGroups(ctx context.Context, hostID string, m *manifest.Manifest) (*trust.Report, bool, int, error) {
	groups, err := w.store.HostGroups(hostID)
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to list host groups: %w", err)
	}

	collective := &trust.Report{HostID: hostID}
	recomputed := false
	evaluated := 0

	for _, g := range groups {
		rep, fresh, err := w.engine.GroupReport(ctx, hostID, m, g)
		if err != nil {
			w.log.Error("group verification failed",
				"host_id", hostID, "group", g.Name, "error", err)
			w.recorder.Record(audit.NewVerifyFailed(hostID,
				fmt.Sprintf("group %s: %v", g.Name, err)))
			continue
		}
		collective.Merge(rep)
		recomputed = recomputed || fresh
		evaluated++
	}

	return collective, recomputed, evaluated, nil
}

// generateReport signs the collective report and persists it. The persisted
// validity window comes from the signed assertion itself.
func (w *Worker) generateReport(hostID string, m *manifest.Manifest, collective *trust.Report) error {
	previous, err := w.store.LatestReport(hostID)
	if err != nil {
		return fmt.Errorf("failed to load previous report: %w", err)
	}

	signed, err := w.assembler.Assemble(m, collective)
	if err != nil {
		return err
	}

	rec := &store.Report{
		HostID:          hostID,
		TrustReport:     collective,
		SignedAssertion: signed.Assertion,
		CreatedAt:       signed.NotBefore,
		ExpiresAt:       signed.NotAfter,
	}
	if err := w.store.SaveReport(rec); err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}

	w.recorder.Record(audit.NewReportGenerated(hostID, rec.ID, rec.ExpiresAt))
	if previous != nil && previous.TrustReport.Trusted() != collective.Trusted() {
		w.recorder.Record(audit.NewTrustChanged(hostID, collective.Trusted()))
	}

	w.log.Info("report generated",
		"host_id", hostID, "report_id", rec.ID,
		"trusted", collective.Trusted(), "expires_at", rec.ExpiresAt)
	return nil
}
